package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

// Dump renders cfg as YAML with secrets redacted
func Dump(cfg *Config) ([]byte, error) {
	out := *cfg
	if out.Telegram.Token != "" {
		out.Telegram.Token = redacted
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}
