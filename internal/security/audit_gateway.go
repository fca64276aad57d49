package security

import (
	"fmt"
	"strings"

	"github.com/coreforge/agentrun/internal/config"
)

// AuditRuntimeConfig checks the runtime server and tool-policy configuration
// for common security misconfigurations.
func AuditRuntimeConfig(cfg *config.Config) []Finding {
	var findings []Finding

	if cfg == nil {
		return findings
	}

	findings = append(findings, auditServerBind(cfg)...)
	findings = append(findings, auditToolPolicies(cfg)...)
	findings = append(findings, auditSandboxConfig(cfg)...)

	return findings
}

func auditServerBind(cfg *config.Config) []Finding {
	var findings []Finding

	host := cfg.Server.Host
	if host == "" {
		host = "localhost"
	}

	if host == "0.0.0.0" || host == "::" {
		findings = append(findings, Finding{
			CheckID:  "server.bind_public",
			Severity: SeverityWarn,
			Title:    "Server binds to all interfaces",
			Detail:   fmt.Sprintf("server.host=%q exposes the server beyond localhost.", host),
		})
	}

	return findings
}

func auditToolPolicies(cfg *config.Config) []Finding {
	var findings []Finding

	execution := cfg.Tools.Execution
	approval := execution.Approval

	for _, pattern := range execution.RequireApproval {
		if pattern == "*" {
			findings = append(findings, Finding{
				CheckID:  "tools.approval.wildcard",
				Severity: SeverityInfo,
				Title:    "All tools require approval",
				Detail:   "tools.execution.require_approval contains '*' - all tools need user confirmation.",
			})
			break
		}
	}

	if len(approval.Allowlist) > 50 {
		findings = append(findings, Finding{
			CheckID:     "tools.allowlist.large",
			Severity:    SeverityWarn,
			Title:       "Tool allowlist is very large",
			Detail:      fmt.Sprintf("tools.execution.approval.allowlist has %d entries; consider using denylist instead.", len(approval.Allowlist)),
			Remediation: "Use tools.execution.approval.denylist to block specific dangerous tools instead.",
		})
	}

	for _, pattern := range approval.Allowlist {
		if pattern == "*" {
			findings = append(findings, Finding{
				CheckID:     "tools.allowlist.wildcard",
				Severity:    SeverityCritical,
				Title:       "Tool allowlist allows everything",
				Detail:      "tools.execution.approval.allowlist contains '*' - all tools are auto-approved.",
				Remediation: "Remove '*' from allowlist and explicitly list allowed tools.",
			})
			break
		}
	}

	dangerousPatterns := []string{"bash", "exec", "shell", "run_command", "execute_code"}
	for _, dangerous := range dangerousPatterns {
		for _, allowed := range approval.Allowlist {
			if strings.Contains(strings.ToLower(allowed), dangerous) {
				requiresApproval := false
				for _, req := range execution.RequireApproval {
					if req == allowed || req == "*" {
						requiresApproval = true
						break
					}
				}
				if !requiresApproval {
					findings = append(findings, Finding{
						CheckID:     fmt.Sprintf("tools.dangerous.%s", dangerous),
						Severity:    SeverityWarn,
						Title:       fmt.Sprintf("Dangerous tool pattern '%s' in allowlist", allowed),
						Detail:      fmt.Sprintf("Tool '%s' can execute arbitrary code but doesn't require approval.", allowed),
						Remediation: fmt.Sprintf("Add '%s' to tools.execution.require_approval.", allowed),
					})
				}
			}
		}
	}

	if approval.DefaultDecision == "allowed" {
		findings = append(findings, Finding{
			CheckID:     "tools.default_allowed",
			Severity:    SeverityWarn,
			Title:       "Default tool decision is 'allowed'",
			Detail:      "Unrecognized tools are auto-approved by default.",
			Remediation: "Set tools.execution.approval.default_decision to 'pending' or 'denied'.",
		})
	}

	return findings
}

func auditSandboxConfig(cfg *config.Config) []Finding {
	var findings []Finding

	sandbox := cfg.Tools.Sandbox
	if !sandbox.Enabled {
		findings = append(findings, Finding{
			CheckID:  "sandbox.disabled",
			Severity: SeverityWarn,
			Title:    "Sandbox is disabled",
			Detail:   "tools.sandbox.enabled is false; shell and code-execution tools run unsandboxed on the host.",
		})
		return findings
	}

	if sandbox.NetworkEnabled {
		findings = append(findings, Finding{
			CheckID:  "sandbox.network_enabled",
			Severity: SeverityInfo,
			Title:    "Sandbox network access is enabled",
			Detail:   "tools.sandbox.network_enabled=true allows sandboxed processes to reach the network.",
		})
	}

	return findings
}
