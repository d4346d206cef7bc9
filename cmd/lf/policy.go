package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lf/internal/config"
	"lf/internal/security"
)

// resolvePolicy picks the security policy: --policy, then [run].policy, then
// the program's #security directive, then advisory.
func resolvePolicy(cmd *cobra.Command, cfg *config.Config, directive string) (security.Policy, error) {
	flag, err := cmd.Flags().GetString("policy")
	if err != nil {
		return security.PolicyAdvisory, fmt.Errorf("failed to get policy flag: %w", err)
	}
	if flag != "" {
		return security.ParsePolicy(flag)
	}
	if cfg != nil && cfg.PolicySet() {
		return cfg.Policy(), nil
	}
	if directive != "" {
		p, err := security.ParsePolicy(directive)
		if err != nil {
			return security.PolicyAdvisory, fmt.Errorf("#security: %w", err)
		}
		return p, nil
	}
	return security.PolicyAdvisory, nil
}
