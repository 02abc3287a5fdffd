// Package gpio provides binary GPIO line reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads one binary GPIO line.
type Reader interface {
	// Read returns the logical line state: true = line active = object
	// near the proximity module.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin assignments (BCM numbering).
const (
	DefaultPinPrimary   = 23 // always-on IR proximity module
	DefaultPinSecondary = 24 // confirmation module, power-gated by fusion
)
