package controlplane

// toolCatalog is the static schema list returned by tools/list. Each
// entry is inlined exactly as a caller would need it to build a
// tools/call request.
var toolCatalog = []map[string]interface{}{
	{
		"name":        "create_session",
		"description": "Create a new terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"name": strProp("Session name (optional)"),
			"rows": intProp("Terminal rows (default: 24)"),
			"cols": intProp("Terminal columns (default: 80)"),
		}, nil),
	},
	{
		"name":        "list_sessions",
		"description": "List all terminal sessions",
		"inputSchema": objSchema(map[string]interface{}{}, nil),
	},
	{
		"name":        "close_session",
		"description": "Close a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"session": strProp("Session name"),
		}, []string{"session"}),
	},
	{
		"name":        "switch_session",
		"description": "Switch the active session",
		"inputSchema": objSchema(map[string]interface{}{
			"session": strProp("Session name"),
		}, []string{"session"}),
	},
	{
		"name":        "run_command",
		"description": "Execute a command in a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"command": strProp("Command to execute"),
			"session": strProp("Session name (optional, defaults to active)"),
			"wait":    map[string]interface{}{"type": "boolean", "description": "Wait for output (default: true)"},
			"wait_ms": intProp("Wait time in milliseconds (default: 300)"),
		}, []string{"command"}),
	},
	{
		"name":        "get_output",
		"description": "Get recent output from a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"session": strProp("Session name (optional, defaults to active)"),
			"wait_ms": intProp("Wait time in milliseconds before reading (default: 100)"),
		}, nil),
	},
	{
		"name":        "send_input",
		"description": "Write raw bytes to a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"input":   strProp("Raw input to send"),
			"session": strProp("Session name (optional, defaults to active)"),
		}, []string{"input"}),
	},
	{
		"name":        "send_control",
		"description": "Send a control signal to a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"signal":  map[string]interface{}{"type": "string", "enum": []string{"ctrl-c", "ctrl-d", "ctrl-z"}},
			"session": strProp("Session name (optional, defaults to active)"),
		}, []string{"signal"}),
	},
	{
		"name":        "resize_session",
		"description": "Resize a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"rows":    intProp("Terminal rows"),
			"cols":    intProp("Terminal columns"),
			"session": strProp("Session name (optional, defaults to active)"),
		}, []string{"rows", "cols"}),
	},
	{
		"name":        "get_cwd",
		"description": "Get the working directory of a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"session": strProp("Session name (optional, defaults to active)"),
		}, nil),
	},
	{
		"name":        "set_cwd",
		"description": "Change the working directory of a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"path":    strProp("Target directory"),
			"session": strProp("Session name (optional, defaults to active)"),
		}, []string{"path"}),
	},
	{
		"name":        "set_env",
		"description": "Set an environment variable in a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"name":    strProp("Variable name"),
			"value":   strProp("Variable value"),
			"session": strProp("Session name (optional, defaults to active)"),
		}, []string{"name", "value"}),
	},
	{
		"name":        "get_history",
		"description": "Get the command history of a terminal session",
		"inputSchema": objSchema(map[string]interface{}{
			"session": strProp("Session name (optional, defaults to active)"),
			"limit":   intProp("Maximum entries to return (default: 50)"),
		}, nil),
	},
}

func strProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func objSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
