package llm

// Role tags one turn of the sequence sent to the completion service.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged unit of a prompt.
type Turn struct {
	Role Role
	Text string
}

func System(text string) Turn    { return Turn{Role: RoleSystem, Text: text} }
func User(text string) Turn      { return Turn{Role: RoleUser, Text: text} }
func Assistant(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }
