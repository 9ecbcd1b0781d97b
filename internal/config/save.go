package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveStore updates the store section of the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SaveStore(configPath string, store StoreConfig) error {
	node, err := buildStoreNode(store)
	if err != nil {
		return fmt.Errorf("building store node: %w", err)
	}
	return saveSection(configPath, "store", node)
}

// SaveFlag sets a single feature flag in the config file, keeping other
// flags and comments intact.
func SaveFlag(configPath, name string, enabled bool) error {
	doc, err := readDocument(configPath)
	if err != nil {
		return err
	}

	flagsNode := findKey(rootMapping(doc), "flags")
	if flagsNode == nil || flagsNode.Kind != yaml.MappingNode {
		flagsNode = &yaml.Node{Kind: yaml.MappingNode}
	}
	value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(enabled)}
	setKey(flagsNode, name, value)

	return saveSectionIn(doc, configPath, "flags", flagsNode)
}

func buildStoreNode(store StoreConfig) (*yaml.Node, error) {
	type yamlStore struct {
		Backend      string `yaml:"backend"`
		Path         string `yaml:"path,omitempty"`
		RedisURL     string `yaml:"redis_url,omitempty"`
		RedisKey     string `yaml:"redis_key,omitempty"`
		FlushTimeout string `yaml:"flush_timeout,omitempty"`
	}
	ys := yamlStore{
		Backend:  store.Backend,
		Path:     store.Path,
		RedisURL: store.RedisURL,
		RedisKey: store.RedisKey,
	}
	if store.FlushTimeout > 0 {
		ys.FlushTimeout = store.FlushTimeout.String()
	}

	var node yaml.Node
	if err := node.Encode(ys); err != nil {
		return nil, err
	}
	return &node, nil
}

func readDocument(configPath string) (*yaml.Node, error) {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		// Empty or new file - create document structure
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	return &doc, nil
}

func rootMapping(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 && doc.Content[0].Kind == yaml.MappingNode {
		return doc.Content[0]
	}
	return nil
}

func findKey(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil {
		return nil
	}
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// setKey replaces the value for key, or appends it.
func setKey(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

func saveSection(configPath, key string, value *yaml.Node) error {
	doc, err := readDocument(configPath)
	if err != nil {
		return err
	}
	return saveSectionIn(doc, configPath, key, value)
}

func saveSectionIn(doc *yaml.Node, configPath, key string, value *yaml.Node) error {
	root := rootMapping(doc)
	if root == nil {
		return fmt.Errorf("config root is not a mapping")
	}
	setKey(root, key, value)

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// writeAtomic writes to a temp file in the target directory, then renames.
func writeAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".cqlconn.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
