package hostadapter

import (
	"io"
	"os"

	"github.com/containerd/console"

	"github.com/axeberg/axebergos-sub000/pkg/kernel"
)

// Console drains a real terminal's input into the kernel's shared
// ConsoleObject and flushes its OutputQueue back out, bridging the
// simulated /dev/console to an actual host tty via containerd/console.
// It also keeps the ConsoleObject's Rows/Cols in sync with the terminal's
// real size, backing the ioctl winsize syscalls.
type Console struct {
	current console.Console
	k       *kernel.Kernel
}

// NewConsole wraps f (typically os.Stdin, when it is a terminal) as a
// raw-mode console feeding k's shared console object. If f is not backed
// by a tty, NewConsole returns (nil, console.ErrNotAConsole) and the
// caller should fall back to non-interactive stdio plumbing.
func NewConsole(f *os.File, k *kernel.Kernel) (*Console, error) {
	c, err := console.ConsoleFromFile(f)
	if err != nil {
		return nil, err
	}
	if err := c.SetRaw(); err != nil {
		return nil, err
	}
	return &Console{current: c, k: k}, nil
}

// SyncWinsize reads the real terminal's current size and stores it on the
// kernel's shared ConsoleObject so IoctlGetWinsize reports real dimensions.
func (hc *Console) SyncWinsize() error {
	ws, err := hc.current.Size()
	if err != nil {
		return err
	}
	hc.k.Console().Rows, hc.k.Console().Cols = ws.Height, ws.Width
	return nil
}

// PumpInput copies bytes from the real terminal into the shared console's
// InputQueue until the terminal is closed or an error occurs. Intended to
// run in its own goroutine; the kernel's cooperative executor remains
// single-threaded and only observes InputQueue between Tick calls.
func (hc *Console) PumpInput() error {
	buf := make([]byte, 256)
	for {
		n, err := hc.current.Read(buf)
		if n > 0 {
			c := hc.k.Console()
			c.InputQueue = append(c.InputQueue, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// FlushOutput writes and clears the shared console's OutputQueue to w
// (typically os.Stdout).
func (hc *Console) FlushOutput(w io.Writer) error {
	c := hc.k.Console()
	if len(c.OutputQueue) == 0 {
		return nil
	}
	if _, err := w.Write(c.OutputQueue); err != nil {
		return err
	}
	c.OutputQueue = c.OutputQueue[:0]
	return nil
}

// Close restores the terminal's original mode.
func (hc *Console) Close() error {
	return hc.current.Reset()
}
