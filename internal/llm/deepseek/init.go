package deepseek

import "github.com/mvamarnath1/interview/internal/llm"

func init() {
	llm.RegisterProvider(providerName, func() (llm.Provider, error) {
		config, err := NewConfig()
		if err != nil {
			return nil, err
		}
		return NewClient(config, nil), nil
	})
}
