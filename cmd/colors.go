package cmd

import (
	"github.com/fatih/color"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func formatReasonWithColor(reason integrity.Reason) string {
	switch reason {
	case integrity.ReasonModified, integrity.ReasonWhitelistedModified:
		return colorError(reason.String())
	case integrity.ReasonUnexpected:
		return colorWarn(reason.String())
	case integrity.ReasonUnreadable:
		return colorInfo(reason.String())
	default:
		return reason.String()
	}
}
