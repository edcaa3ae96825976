package cli

import "ftr/internal/config"

// Flags holds command-line flags
type Flags struct {
	TestPath     string
	NameFilter   string
	TestCases    bool
	FailFast     bool
	OnlyFailed   bool
	OpenFaills   bool
	Debug        bool
	Verbose      bool
	Exclude      []string
	HistoryLimit int
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		TestPath:   f.TestPath,
		NameFilter: f.NameFilter,
		TestCases:  f.TestCases,
		FailFast:   f.FailFast,
		OnlyFailed: f.OnlyFailed,
		OpenFaills: f.OpenFaills,
		Debug:      f.Debug,
		Verbose:    f.Verbose,
		Exclude:    f.Exclude,
	}
}
