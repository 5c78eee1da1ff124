package domain

// Tensor is a preprocessed, model-ready image. The core never inspects it.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// StageScore is the raw output of a stage scoring call.
type StageScore struct {
	Label      string  `json:"stage"`
	Confidence float64 `json:"confidence"`
}
