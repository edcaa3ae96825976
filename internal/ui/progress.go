package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// ProgressBar creates and manages progress bars
type ProgressBar struct {
	bar   *progressbar.ProgressBar
	title string
}

// NewProgressBar creates a new progress bar on stderr
func NewProgressBar(count int, title string) *ProgressBar {
	return newProgressBar(os.Stderr, count, title)
}

func newProgressBar(w io.Writer, count int, title string) *ProgressBar {
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription(color.CyanString(title+": ")),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar, title: title}
}

// Add advances the bar by n steps
func (p *ProgressBar) Add(n int) error {
	return p.bar.Add(n)
}

// Update shows the passed and failed test counts next to the bar
func (p *ProgressBar) Update(passed, failed int) {
	p.bar.Describe(
		color.CyanString(p.title+": ") +
			color.GreenString("[passed: %d", passed) +
			" | " +
			color.RedString("failed: %d]", failed),
	)
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}
