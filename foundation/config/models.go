package config

// Conversation is the parsed conversation configuration file.
type Conversation struct {
	RoleType map[string][]string `yaml:"role_type"`
	Setting  Setting             `yaml:"conversation_setting"`

	// ProductInfoStruct is a two-part template pair: the first part carries
	// the {name} placeholder, the second the {highlights} placeholder.
	ProductInfoStruct []string `yaml:"product_info_struct"`
}

type Setting struct {
	System     string `yaml:"system"`
	FirstInput string `yaml:"first_input"`
}
