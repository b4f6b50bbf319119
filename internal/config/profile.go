package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"

	"budgetform/internal/core"
)

// Profile holds user-tunable budget settings read from a TOML file:
//
//	currency = "USD"
//
//	[ratio_tiers]
//	moderate = 60
//	high = 80
//
//	[categories]
//	fixed = ["Rent", "Phone"]
//	variable = ["Groceries", "Fun"]
type Profile struct {
	Currency   string          `toml:"currency"`
	RatioTiers core.RatioTiers `toml:"ratio_tiers"`
	Categories struct {
		Fixed    []string `toml:"fixed"`
		Variable []string `toml:"variable"`
	} `toml:"categories"`
}

// DefaultProfile is used when no profile file is configured.
func DefaultProfile() Profile {
	return Profile{
		Currency:   core.DefaultCurrency,
		RatioTiers: core.DefaultRatioTiers,
	}
}

// LoadProfile decodes path over DefaultProfile. Keys missing from the file
// keep their defaults; unknown keys are rejected so typos surface early.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("decode budget profile %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("budget profile %s: unknown keys %v", path, undecoded)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("budget profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks currency and tiers.
func (p Profile) Validate() error {
	var errs []error
	if !core.ValidCurrency(p.Currency) {
		errs = append(errs, fmt.Errorf("unknown currency %q", p.Currency))
	}
	if err := p.RatioTiers.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Profile loads the configured budget profile, or the defaults when unset.
func (c *Config) Profile() (Profile, error) {
	return LoadProfile(c.BudgetProfileFile)
}
