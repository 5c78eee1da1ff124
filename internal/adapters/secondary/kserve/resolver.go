package kserve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"scan-prediction-service/internal/config"
	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

var inferenceServiceGVR = schema.GroupVersionResource{
	Group:    "serving.kserve.io",
	Version:  "v1beta1",
	Resource: "inferenceservices",
}

type clusterResolver struct {
	client    dynamic.Interface
	enabled   bool
	defaultNS string
}

// NewResolver creates an endpoint resolver reading InferenceService status from the cluster.
func NewResolver(cfg *config.KubernetesConfig) (ports.EndpointResolver, error) {
	if !cfg.Enabled {
		return &clusterResolver{enabled: false}, nil
	}

	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	return newClusterResolver(client, cfg.DefaultNS), nil
}

func newClusterResolver(client dynamic.Interface, namespace string) *clusterResolver {
	if namespace == "" {
		namespace = "model-serving"
	}
	return &clusterResolver{client: client, enabled: true, defaultNS: namespace}
}

func (r *clusterResolver) IsAvailable() bool {
	return r.enabled
}

func (r *clusterResolver) Resolve(ctx context.Context, name string) (*ports.InferenceEndpoint, error) {
	if !r.enabled {
		return nil, fmt.Errorf("resolve %s: kubernetes integration disabled", name)
	}

	obj, err := r.client.Resource(inferenceServiceGVR).
		Namespace(r.defaultNS).
		Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get kserve inferenceservice: %w", err)
	}

	return parseStatus(obj), nil
}

func parseStatus(obj *unstructured.Unstructured) *ports.InferenceEndpoint {
	endpoint := &ports.InferenceEndpoint{}

	statusMap, found, _ := unstructured.NestedMap(obj.Object, "status")
	if !found {
		return endpoint
	}

	endpoint.URL, _, _ = unstructured.NestedString(statusMap, "url")

	conditions, found, _ := unstructured.NestedSlice(statusMap, "conditions")
	if found {
		for _, cond := range conditions {
			condMap, ok := cond.(map[string]interface{})
			if !ok {
				continue
			}
			condType, _ := condMap["type"].(string)
			condStatus, _ := condMap["status"].(string)

			if condType == "Ready" {
				endpoint.Ready = condStatus == "True"
				if condStatus == "False" {
					if msg, ok := condMap["message"].(string); ok {
						endpoint.Error = msg
					}
				}
				break
			}
		}
	}

	return endpoint
}

// staticResolver serves every model from one configured base URL.
type staticResolver struct {
	baseURL string
}

func NewStaticResolver(baseURL string) ports.EndpointResolver {
	return &staticResolver{baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *staticResolver) IsAvailable() bool {
	return r.baseURL != ""
}

func (r *staticResolver) Resolve(_ context.Context, _ string) (*ports.InferenceEndpoint, error) {
	return &ports.InferenceEndpoint{URL: r.baseURL, Ready: r.baseURL != ""}, nil
}

// ServiceName derives the InferenceService name for a registered model,
// e.g. cnn_rnn v1 -> cnn-rnn-v1.
func ServiceName(model *domain.RegisteredModel) string {
	name := strings.ToLower(model.Name + "-" + model.Version)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, name)
}

var (
	_ ports.EndpointResolver = (*clusterResolver)(nil)
	_ ports.EndpointResolver = (*staticResolver)(nil)
)
