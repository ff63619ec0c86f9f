package progress

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var spinnerParts = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows that a step of unknown length is running. Once stopped it
// renders the elapsed time instead.
type Spinner struct {
	message string
	started time.Time
	stopped atomic.Int64
}

func NewSpinner(message string) *Spinner {
	return &Spinner{message: message, started: time.Now()}
}

func (s *Spinner) String() string {
	var sb strings.Builder
	if s.message != "" {
		fmt.Fprintf(&sb, "%s ", strings.TrimSpace(s.message))
	}

	if stopped := s.stopped.Load(); stopped != 0 {
		elapsed := time.Unix(0, stopped).Sub(s.started)
		sb.WriteString(formatDuration(elapsed))
		return sb.String()
	}

	frame := int(time.Since(s.started)/(100*time.Millisecond)) % len(spinnerParts)
	sb.WriteString(spinnerParts[frame])
	return sb.String()
}

func (s *Spinner) Stop() {
	s.stopped.CompareAndSwap(0, time.Now().UnixNano())
}
