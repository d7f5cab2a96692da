package detector

import (
	"os"

	"github.com/actionsum/wsbridge/internal/config"
	"github.com/actionsum/wsbridge/internal/logging"
	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/actionsum/wsbridge/pkg/integrations/hyprland"
	"github.com/pkg/errors"
)

const (
	Hyprland = "hyprland"
	Unknown  = "unknown"
)

// ErrUnsupported means no adapter exists for the requested or running compositor
var ErrUnsupported = errors.New("unsupported compositor")

// New returns the protocol adapter named by cfg, or the one matching the
// running session when cfg leaves the kind empty
func New(cfg config.CompositorConfig) (compositor.Protocol, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = DetectCompositor()
	}

	switch kind {
	case Hyprland:
		return hyprland.New(
			hyprland.WithSocketDir(cfg.SocketDir),
			hyprland.WithTimeout(cfg.RequestTimeout),
			hyprland.WithLogger(logging.NewLogger("hyprland")),
		)
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%q", kind)
	}
}

// DetectCompositor names the compositor of the current session from its environment
func DetectCompositor() string {
	if os.Getenv(hyprland.SignatureEnv) != "" {
		return Hyprland
	}
	return Unknown
}
