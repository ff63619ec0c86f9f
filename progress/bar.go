package progress

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"github.com/vocabtrim/vocabtrim/format"
)

// Bar tracks a count of completed items. Set and Add may be called from any
// goroutine.
type Bar struct {
	message string
	unit    string

	maxValue     int64
	currentValue atomic.Int64

	started time.Time
}

func NewBar(message, unit string, maxValue int64) *Bar {
	return &Bar{
		message:  message,
		unit:     unit,
		maxValue: maxValue,
		started:  time.Now(),
	}
}

// formatDuration limits the rendering of a time.Duration to 2 units
func formatDuration(d time.Duration) string {
	if d >= 100*time.Hour {
		return "99h+"
	}

	if d >= time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}

	return d.Round(time.Second).String()
}

func (b *Bar) String() string {
	termWidth, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		termWidth = defaultTermWidth
	}

	var pre, mid, suf strings.Builder

	if b.message != "" {
		fmt.Fprintf(&pre, "%s ", strings.TrimSpace(b.message))
	}

	fmt.Fprintf(&pre, "%3.0f%% ", math.Floor(b.percent()))

	current := b.currentValue.Load()
	fmt.Fprintf(&suf, "(%s/%s %s) [%s]",
		format.HumanNumber(uint64(current)),
		format.HumanNumber(uint64(b.maxValue)),
		b.unit,
		formatDuration(time.Since(b.started)),
	)

	// add 3 extra spaces: 2 boundary characters and 1 space at the end
	f := termWidth - pre.Len() - suf.Len() - 3
	n := int(float64(f) * b.percent() / 100)

	if f > 0 {
		mid.WriteString("▕")
		mid.WriteString(strings.Repeat("█", n))
		if f-n > 0 {
			mid.WriteString(strings.Repeat(" ", f-n))
		}
		mid.WriteString("▏")
	}

	return pre.String() + mid.String() + " " + suf.String()
}

func (b *Bar) Set(value int64) {
	b.currentValue.Store(min(value, b.maxValue))
}

func (b *Bar) Add(delta int64) {
	if v := b.currentValue.Add(delta); v > b.maxValue {
		b.currentValue.Store(b.maxValue)
	}
}

func (b *Bar) percent() float64 {
	if b.maxValue > 0 {
		return float64(b.currentValue.Load()) / float64(b.maxValue) * 100
	}

	return 0
}
