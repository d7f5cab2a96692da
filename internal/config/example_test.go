package config_test

import (
	"fmt"

	"github.com/actionsum/wsbridge/internal/config"
)

// Example of creating a default configuration
func ExampleDefault() {
	cfg := config.Default()
	fmt.Println("Buffer Size:", cfg.Bridge.BufferSize)
	fmt.Println("Request Timeout:", cfg.Compositor.RequestTimeout)
	// Output:
	// Buffer Size: 16
	// Request Timeout: 2s
}

// Example of setting the buffer size with validation
func ExampleConfig_SetBufferSize() {
	cfg := config.Default()

	// Valid size
	if err := cfg.SetBufferSize(64); err != nil {
		fmt.Println("Error:", err)
	} else {
		fmt.Println("Buffer size set to:", cfg.Bridge.BufferSize)
	}

	// Invalid size
	if err := cfg.SetBufferSize(0); err != nil {
		fmt.Println("Error:", err)
	}

	// Output:
	// Buffer size set to: 64
	// Error: buffer size must be at least 1, got 0
}

// Example of validating configuration
func ExampleConfig_Validate() {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	} else {
		fmt.Println("Configuration is valid")
	}

	// Output:
	// Configuration is valid
}
