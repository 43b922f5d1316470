package toolchain

import "strings"

// BuildHints returns advice for a failed build, based on its output.
func BuildHints(output string) []string {
	out := strings.ToLower(output)
	switch {
	case strings.Contains(out, "no such file") && strings.Contains(out, "glowconfig.h"):
		return []string{"Missing GlowConfig.h - run configuration first!"}
	case strings.Contains(out, "undeclared identifier") || strings.Contains(out, "was not declared"):
		return []string{"Check your pin definitions in GlowConfig.h"}
	case strings.Contains(out, "library") && strings.Contains(out, "not found"):
		return []string{"Try: pio lib install"}
	}
	return nil
}

// FlashHints returns advice for a failed upload, based on its output.
func FlashHints(output string) []string {
	out := strings.ToLower(output)
	switch {
	case strings.Contains(out, "permission denied"):
		return []string{"Try adding user to dialout group: sudo usermod -a -G dialout $USER"}
	case strings.Contains(out, "device not found"):
		return []string{"Check USB connection and try different port"}
	case strings.Contains(out, "failed to connect"):
		return []string{"Hold BOOT button while connecting, then release"}
	}
	return nil
}
