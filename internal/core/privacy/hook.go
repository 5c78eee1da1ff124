package privacy

import log "github.com/sirupsen/logrus"

// LogHook redacts sensitive fields from every log entry before it is formatted.
type LogHook struct{}

func (LogHook) Levels() []log.Level {
	return log.AllLevels
}

func (LogHook) Fire(entry *log.Entry) error {
	for k, v := range entry.Data {
		if k == log.ErrorKey {
			if err, ok := v.(error); ok {
				entry.Data[k] = RedactKeys(err.Error())
			}
			continue
		}
		entry.Data[k] = sanitizeValue(k, v)
	}
	entry.Message = RedactKeys(entry.Message)
	return nil
}
