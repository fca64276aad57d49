package policy

import "strings"

// Capability is one of the three orthogonal per-tool flags the policy
// engine and the agent loop consult: whether a tool only reads state,
// whether it is dispatched inside the loop instead of the tool host, and
// whether review mode blocks it outright.
type Capability struct {
	ReadOnly      bool
	AgentLevel    bool
	ReviewBlocked bool
}

// capabilityTable is the single source of truth for built-in tool
// capabilities. Both the review-mode tool filter (offeredTools) and the
// per-tool review_blocked gate (IsReviewBlocked) read from this table, so
// the two can never drift the way spec.md's open question warns about.
//
// Keys are canonical dotted names. ToolAliases and naming.DefaultCoreAliases
// resolve underscored/legacy names down to these before lookup.
var capabilityTable = map[string]Capability{
	"fs.read":           {ReadOnly: true},
	"fs.write":          {ReviewBlocked: true},
	"fs.edit":           {ReviewBlocked: true},
	"fs.glob":           {ReadOnly: true},
	"fs.grep":           {ReadOnly: true},
	"fs.list":           {ReadOnly: true},
	"git.status":        {ReadOnly: true},
	"git.diff":          {ReadOnly: true},
	"git.show":          {ReadOnly: true},
	"bash.run":          {ReviewBlocked: true},
	"multi_edit":        {ReviewBlocked: true},
	"patch.stage":       {ReadOnly: true},
	"patch.apply":       {ReviewBlocked: true},
	"web.fetch":         {ReadOnly: true},
	"web.search":        {ReadOnly: true},

	// "exec"/"web_search"/"web_fetch" are the actual names
	// internal/tools/exec and internal/tools/websearch register with the
	// tool host (ToolAliases maps "bash"/"shell" and "websearch"/"webfetch"
	// to these, not to the dotted bash.run/web.* names above, since those
	// underscored names are themselves canonical elsewhere in this
	// package's group/profile tables).
	"exec":       {ReviewBlocked: true},
	"web_search": {ReadOnly: true},
	"web_fetch":  {ReadOnly: true},
	"notebook.read":     {ReadOnly: true},
	"notebook.edit":     {ReviewBlocked: true},
	"index.query":       {ReadOnly: true},
	"diagnostics.check": {ReadOnly: true},
	"chrome.navigate":   {ReadOnly: true},
	"chrome.screenshot": {ReadOnly: true},
	"chrome.eval":       {ReviewBlocked: true},
	"chrome.click":      {ReviewBlocked: true},

	// Tools registered by internal/tools packages under names that don't
	// themselves follow the dotted convention above; declared directly
	// here rather than forced through an alias that implies an equivalence
	// that doesn't exist (e.g. "browser" is not a chrome.* sub-action).
	"browser":           {ReviewBlocked: true},
	"execute_code":      {ReviewBlocked: true},
	"process":           {ReviewBlocked: true},
	"system_health":     {ReadOnly: true},
	"system_diagnostic": {ReadOnly: true},
	"provider_usage":    {ReadOnly: true},
	"job_status":        {ReadOnly: true},
	"job_list":          {ReadOnly: true},
	"job_cancel":        {ReviewBlocked: true},
	"document_search":   {ReadOnly: true},
	"document_upload":   {ReviewBlocked: true},
	"document_list":     {ReadOnly: true},
	"document_delete":   {ReviewBlocked: true},
	"spawn_subagent":    {AgentLevel: true},
	"subagent_status":   {AgentLevel: true, ReadOnly: true},
	"subagent_cancel":   {AgentLevel: true},

	// Agent-level tools (C6): dispatched inside the loop, never reach the
	// tool host, so review mode's deny-before-dispatch rule does not apply
	// to them - they are not in the tool host's offered set at all.
	"user_question":   {AgentLevel: true, ReadOnly: true},
	"task_create":      {AgentLevel: true},
	"task_update":      {AgentLevel: true},
	"task_get":         {AgentLevel: true, ReadOnly: true},
	"task_list":        {AgentLevel: true, ReadOnly: true},
	"task_output":      {AgentLevel: true, ReadOnly: true},
	"task_stop":        {AgentLevel: true},
	"spawn_task":       {AgentLevel: true},
	"enter_plan_mode":  {AgentLevel: true, ReadOnly: true},
	"exit_plan_mode":   {AgentLevel: true},
	"skill":            {AgentLevel: true},
	"kill_shell":       {AgentLevel: true},
	"think_deeply":     {AgentLevel: true, ReadOnly: true},
}

// defaultCapability is what an unknown tool gets: conservative, so the
// policy engine never under-restricts a tool it has no declaration for.
var defaultCapability = Capability{ReadOnly: false, AgentLevel: false, ReviewBlocked: true}

// ManifestCapabilityLookup resolves capability declarations for plugin
// tools. Wired to pluginsdk.Manifest.ToolPolicy by the plugin registry;
// nil means no plugin-sourced capability declarations are available.
type ManifestCapabilityLookup func(toolName string) (readOnly, agentLevel, reviewBlocked *bool, ok bool)

var pluginLookup ManifestCapabilityLookup

// RegisterPluginCapabilityLookup installs the function the policy engine
// uses to resolve capabilities for plugin-sourced tools. Called once during
// plugin runtime startup with a lookup backed by the loaded manifests.
func RegisterPluginCapabilityLookup(lookup ManifestCapabilityLookup) {
	pluginLookup = lookup
}

// CapabilitiesOf resolves the capability flags for a tool name. Built-in
// names are normalized through NormalizeTool first. Names not found in the
// built-in table are offered to the registered plugin lookup (if any);
// failing that, defaultCapability applies.
func CapabilitiesOf(toolName string) Capability {
	normalized := NormalizeTool(toolName)

	if cap, ok := capabilityTable[normalized]; ok {
		return cap
	}

	if pluginLookup != nil {
		if readOnly, agentLevel, reviewBlocked, ok := pluginLookup(toolName); ok {
			cap := defaultCapability
			if readOnly != nil {
				cap.ReadOnly = *readOnly
			}
			if agentLevel != nil {
				cap.AgentLevel = *agentLevel
			}
			if reviewBlocked != nil {
				cap.ReviewBlocked = *reviewBlocked
			}
			return cap
		}
	}

	return defaultCapability
}

// IsReadOnly reports whether a tool only reads state. Read-only tools form
// the offered set in plan mode and in strict review mode.
func IsReadOnly(toolName string) bool {
	return CapabilitiesOf(toolName).ReadOnly
}

// IsAgentLevel reports whether a tool is dispatched inside the agent loop
// rather than through the tool host.
func IsAgentLevel(toolName string) bool {
	return CapabilitiesOf(toolName).AgentLevel
}

// IsReviewBlocked reports whether review mode must deny this tool before
// dispatch. This is the single predicate both the review-mode tool filter
// (FilterForReviewMode) and any other review_blocked check must call.
func IsReviewBlocked(toolName string) bool {
	return CapabilitiesOf(toolName).ReviewBlocked
}

// FilterForReviewMode narrows an offered tool list down to the read-only
// subset, the same subset plan mode uses. Strict review mode calls this
// before presenting tools to the model; any write tool that still arrives
// through a stale tool-call is caught again by IsReviewBlocked at dispatch.
func FilterForReviewMode(toolNames []string) []string {
	filtered := make([]string, 0, len(toolNames))
	for _, name := range toolNames {
		if IsReadOnly(name) {
			filtered = append(filtered, name)
		}
	}
	return filtered
}

// FilterForPlanMode narrows an offered tool list to the read-only subset
// plus exit_plan_mode, per spec.md's plan-mode closure invariant.
func FilterForPlanMode(toolNames []string) []string {
	filtered := make([]string, 0, len(toolNames))
	for _, name := range toolNames {
		if IsReadOnly(name) || strings.EqualFold(NormalizeTool(name), "exit_plan_mode") {
			filtered = append(filtered, name)
		}
	}
	return filtered
}
