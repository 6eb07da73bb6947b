package workflow

// End is the sentinel edge target that terminates a graph execution.
const End = "END"

// TaskDefinition describes a single task inside a declarative workflow.
// The engine never interprets Type; it is matched against the external task
// executor's registry at run time.
type TaskDefinition struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// Inputs maps input names to literal values or {{...}} reference strings
	Inputs map[string]interface{} `json:"inputs,omitempty"`

	// DependsOn lists task ids that must complete before this task starts
	DependsOn []string `json:"depends_on,omitempty"`

	// Retry is the number of additional attempts after a failure
	Retry int `json:"retry,omitempty"`

	// TimeoutMS bounds a single task execution; 0 means no task-level bound
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// Options holds workflow-level execution options
type Options struct {
	Parallel         bool  `json:"parallel,omitempty"`
	TimeoutMS        int64 `json:"timeout_ms,omitempty"`
	RetryFailedTasks bool  `json:"retry_failed_tasks,omitempty"`
	MaxRetries       int   `json:"max_retries,omitempty"`
}

// Definition is a declarative DAG workflow
type Definition struct {
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`

	// Tasks in declared order; order matters for sequential layers
	Tasks []TaskDefinition `json:"tasks"`

	// Output maps external names to reference strings resolved against
	// task results when the workflow completes
	Output map[string]string `json:"output,omitempty"`

	Options Options `json:"options"`
}

// TaskByID returns the task with the given id, or nil
func (d *Definition) TaskByID(id string) *TaskDefinition {
	for i := range d.Tasks {
		if d.Tasks[i].ID == id {
			return &d.Tasks[i]
		}
	}
	return nil
}

// NodeType identifies the variant of a graph node
type NodeType string

const (
	NodeAgent       NodeType = "agent"
	NodeTool        NodeType = "tool"
	NodeConditional NodeType = "conditional"
	NodeHuman       NodeType = "human"
	NodePassthrough NodeType = "passthrough"
)

// GraphNode is a step in a stateful graph. Fields are type-specific: agent
// nodes require Model and SystemPrompt, tool nodes require FunctionName,
// conditional nodes require Condition, human nodes require PromptMessage.
type GraphNode struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`

	// Agent fields
	Model        string   `json:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Tools        []string `json:"tools,omitempty"`

	// Tool fields. Functions are pre-registered with the task executor and
	// referenced by name; inline code is not accepted.
	FunctionName string `json:"function_name,omitempty"`

	// Conditional fields. Condition is a CEL expression over `state` that
	// returns the next node id or END.
	Condition string `json:"condition,omitempty"`

	// Human fields
	PromptMessage string `json:"prompt_message,omitempty"`
}

// GraphEdge connects two graph nodes. When the source is a conditional node,
// Branches maps branch labels to target node ids and To is ignored.
type GraphEdge struct {
	From     string            `json:"from_node"`
	To       string            `json:"to_node,omitempty"`
	Branches map[string]string `json:"branches,omitempty"`
}

// StateField describes one field of a graph's state schema
type StateField struct {
	Type    string      `json:"type"`
	Default interface{} `json:"default,omitempty"`
}

// GraphDefinition is a stateful, possibly cyclic workflow
type GraphDefinition struct {
	GraphID     string                `json:"graph_id"`
	Name        string                `json:"name"`
	StateSchema map[string]StateField `json:"state_schema,omitempty"`

	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`

	EntryPoint   string   `json:"entry_point"`
	FinishPoints []string `json:"finish_points,omitempty"`

	// TimeoutMS bounds the whole graph execution; 0 uses the engine default
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// NodeByID returns the node with the given id, or nil
func (g *GraphDefinition) NodeByID(id string) *GraphNode {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// EdgesFrom returns all edges whose source is the given node
func (g *GraphDefinition) EdgesFrom(id string) []GraphEdge {
	var out []GraphEdge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// ParameterSpec describes one template parameter
type ParameterSpec struct {
	Type        string      `json:"type"`
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required,omitempty"`
}

// RenderFunc builds a concrete workflow definition from template parameters.
// Parameters arrive with schema defaults already applied.
type RenderFunc func(params map[string]interface{}) *Definition

// Template is a parameterized factory for workflow definitions
type Template struct {
	TemplateID string                   `json:"template_id"`
	Name       string                   `json:"name"`
	Category   string                   `json:"category"`
	Version    string                   `json:"version"`
	Parameters map[string]ParameterSpec `json:"parameters"`
	Render     RenderFunc               `json:"-"`
}

// TemplateInfo is the serializable view of a template for listings
type TemplateInfo struct {
	TemplateID  string                   `json:"template_id"`
	Name        string                   `json:"name"`
	Category    string                   `json:"category"`
	Version     string                   `json:"version"`
	Parameters  map[string]ParameterSpec `json:"parameters"`
}
