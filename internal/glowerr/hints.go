package glowerr

import (
	"errors"
	"fmt"
	"strings"
)

// solution maps lowercase substrings of an error message to remediation advice.
type solution struct {
	needles []string
	hints   []string
}

// First match wins.
var solutions = []solution{
	{
		needles: []string{"permission denied"},
		hints: []string{
			"Run with sudo privileges if needed",
			"Check file permissions",
			"Ensure the ESP32 device is not in use by another program",
		},
	},
	{
		needles: []string{"no such file or directory"},
		hints: []string{
			"Verify the file path exists",
			"Check if PlatformIO is properly installed",
			"Ensure you're in the correct project directory",
		},
	},
	{
		needles: []string{"device not found", "serial"},
		hints: []string{
			"Check if the ESP32 is connected via USB",
			"Try a different USB cable or port",
			"Check if device drivers are installed",
			"Disconnect and reconnect the device",
		},
	},
	{
		needles: []string{"platformio"},
		hints: []string{
			"Reinstall PlatformIO using this setup tool",
			"Check your Python installation",
			"Verify internet connection for package downloads",
		},
	},
	{
		needles: []string{"compilation", "build"},
		hints: []string{
			"Check your GlowConfig.h configuration",
			"Verify all pin assignments are valid",
			"Try cleaning the build cache",
		},
	},
}

// Hints returns the explicit hints attached to err followed by hints derived from
// its lowercased message. Unrecognised errors get a pointer to the issue tracker.
func Hints(err error) []string {
	if err == nil {
		return nil
	}

	var hints []string
	for e := err; e != nil; {
		var ge *Error
		if !errors.As(e, &ge) {
			break
		}
		hints = append(hints, ge.Hints...)
		e = ge.Err
	}

	msg := strings.ToLower(err.Error())
	for _, s := range solutions {
		if containsAny(msg, s.needles) {
			return append(hints, s.hints...)
		}
	}

	if len(hints) == 0 && KindOf(err) == "" {
		hints = append(hints, fmt.Sprintf("Unknown error. Please report at: %s", IssuesURL))
	}
	return hints
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Box renders err as a framed block followed by its hints. Long lines wrap inside
// the frame.
func Box(err error) string {
	var b strings.Builder
	b.WriteString("╔═══════════════════════════════════════════════════════════════╗\n")
	for i, line := range wrap(err.Error(), 54) {
		if i == 0 {
			fmt.Fprintf(&b, "║  ERROR: %-54s║\n", line)
		} else {
			fmt.Fprintf(&b, "║         %-54s║\n", line)
		}
	}
	hints := Hints(err)
	if len(hints) > 0 {
		b.WriteString("╠═══════════════════════════════════════════════════════════════╣\n")
		for _, h := range hints {
			for i, line := range wrap(h, 59) {
				if i == 0 {
					fmt.Fprintf(&b, "║  • %-59s║\n", line)
				} else {
					fmt.Fprintf(&b, "║    %-59s║\n", line)
				}
			}
		}
	}
	b.WriteString("╚═══════════════════════════════════════════════════════════════╝")
	return b.String()
}

// wrap splits s into lines of at most n runes, breaking at spaces where it can.
func wrap(s string, n int) []string {
	var lines []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		if len(cur) > 0 && len(cur)+1+len(w) > n {
			lines = append(lines, string(cur))
			cur = cur[:0]
		}
		for len(w) > n {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = cur[:0]
			}
			lines = append(lines, string(w[:n]))
			w = w[n:]
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	if len(cur) > 0 || len(lines) == 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
