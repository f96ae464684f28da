package alerts

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Stdout prints alert messages instead of delivering them, mirroring
// the original implementation's --dry-run behavior so the monitor can
// be exercised without a live Telegram bot.
type Stdout struct {
	w io.Writer
}

func NewStdout() *Stdout {
	return &Stdout{w: os.Stdout}
}

func (s *Stdout) Send(ctx context.Context, message string) error {
	_, err := fmt.Fprintln(s.w, message)
	return err
}
