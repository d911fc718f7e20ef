// Package config loads the conversation configuration file: persona trait
// lists, the system/first-input prompt templates and the product info
// template pair.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

func GetConversation(configPath string) (Conversation, error) {
	bytes, err := os.ReadFile(configPath)
	if err != nil {
		return Conversation{}, err
	}

	var c Conversation
	if err := yaml.Unmarshal(bytes, &c); err != nil {
		return Conversation{}, fmt.Errorf("parsing conversation config: %w", err)
	}

	if c.Setting.System == "" || c.Setting.FirstInput == "" {
		return Conversation{}, fmt.Errorf("conversation config[%s] is missing conversation_setting", configPath)
	}
	if len(c.ProductInfoStruct) < 2 {
		return Conversation{}, fmt.Errorf("conversation config[%s] needs a two-part product_info_struct", configPath)
	}

	return c, nil
}

// SystemPrompt renders the system template for the given persona, joining
// its trait list with the "、" separator the templates expect.
func (c Conversation) SystemPrompt(roleName string) (string, error) {
	traits, exists := c.RoleType[roleName]
	if !exists {
		return "", fmt.Errorf("role[%s] does not exist", roleName)
	}

	system := strings.ReplaceAll(c.Setting.System, "{role_type}", roleName)
	system = strings.ReplaceAll(system, "{character}", strings.Join(traits, "、"))
	return system, nil
}

// ProductInfo builds the item description block from the template pair.
func (c Conversation) ProductInfo(name string, highlights string) string {
	info := strings.ReplaceAll(c.ProductInfoStruct[0], "{name}", name)
	info += strings.ReplaceAll(c.ProductInfoStruct[1], "{highlights}", highlights)
	return info
}

// FirstInput renders the opening prompt the assistant answers unprompted.
func (c Conversation) FirstInput(productInfo string) string {
	return strings.ReplaceAll(c.Setting.FirstInput, "{product_info}", productInfo)
}
