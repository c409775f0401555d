package builtin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/lla/pkg/pluginsdk"
	"github.com/soyeahso/lla/pkg/wire"
)

const (
	CategorizerName    = "categorizer"
	categorizerVersion = "0.4.0"

	fieldCategory    = "category"
	fieldColor       = "category_color"
	fieldSubcategory = "subcategory"
)

// CategoryRule assigns a category to files by extension.
type CategoryRule struct {
	Name          string              `yaml:"name"`
	Color         string              `yaml:"color"`
	Extensions    []string            `yaml:"extensions"`
	MaxSize       uint64              `yaml:"max_size,omitempty"` // 0 = no limit
	Subcategories map[string][]string `yaml:"subcategories,omitempty"`
	Description   string              `yaml:"description,omitempty"`
}

func (r CategoryRule) matches(ext string, size uint64) bool {
	if !slices.Contains(r.Extensions, ext) {
		return false
	}
	return r.MaxSize == 0 || size <= r.MaxSize
}

func (r CategoryRule) subcategory(ext string) string {
	names := make([]string, 0, len(r.Subcategories))
	for name := range r.Subcategories {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if slices.Contains(r.Subcategories[name], ext) {
			return name
		}
	}
	return ""
}

// DefaultRules are used when no rules file exists.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{
			Name:       "Document",
			Color:      "blue",
			Extensions: []string{"txt", "md", "doc", "docx", "pdf", "rtf", "odt"},
			MaxSize:    10 << 20,
			Subcategories: map[string][]string{
				"Text":   {"txt", "md"},
				"Office": {"doc", "docx", "xls", "xlsx", "ppt", "pptx"},
			},
			Description: "Text documents and office files",
		},
		{
			Name:       "Image",
			Color:      "green",
			Extensions: []string{"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp", "tiff"},
			MaxSize:    50 << 20,
			Subcategories: map[string][]string{
				"Raster": {"jpg", "jpeg", "png", "gif", "bmp"},
				"Vector": {"svg", "ai", "eps"},
			},
			Description: "Image files in various formats",
		},
		{
			Name:  "Code",
			Color: "cyan",
			Extensions: []string{
				"rs", "py", "js", "ts", "java", "c", "cpp", "h", "hpp", "go", "rb", "php",
				"cs", "swift", "kt",
			},
			MaxSize: 1 << 20,
			Subcategories: map[string][]string{
				"Systems": {"rs", "c", "cpp", "h", "hpp", "go"},
				"Web":     {"js", "ts", "html", "css", "php"},
				"Scripts": {"py", "rb", "sh", "bash"},
			},
			Description: "Source code files",
		},
	}
}

var ansiColors = map[string]string{
	"black":   "0",
	"red":     "1",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"cyan":    "6",
	"white":   "7",
}

func colorize(s, color string) string {
	code, ok := ansiColors[strings.ToLower(color)]
	if !ok {
		code = ansiColors["white"]
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(code)).Render(s)
}

type categoryStats struct {
	count     int
	totalSize uint64
	subs      map[string]int
}

// Categorizer tags entries with a file category.
type Categorizer struct {
	pluginsdk.ActionRegistry

	rulesPath string

	mu    sync.Mutex
	rules []CategoryRule
	stats map[string]*categoryStats
}

// NewCategorizer loads rules from rulesPath, falling back to DefaultRules.
// An empty rulesPath keeps rules in memory only.
func NewCategorizer(rulesPath string, out io.Writer) *Categorizer {
	c := &Categorizer{
		rulesPath: rulesPath,
		rules:     loadRules(rulesPath),
		stats:     make(map[string]*categoryStats),
	}
	c.Out = out
	c.Register("add-category", pluginsdk.Action{
		Usage:       "add-category <name> <color> <ext1,ext2,...> [description]",
		Description: "Add a new category",
		Examples:    []string{"lla plugin --name categorizer --action add-category --args Archive yellow zip,tar,gz"},
		Run:         c.addCategory,
	})
	c.Register("add-subcategory", pluginsdk.Action{
		Usage:       "add-subcategory <category> <subcategory> <ext1,ext2,...>",
		Description: "Add a subcategory to a category",
		Run:         c.addSubcategory,
	})
	c.Register("list-categories", pluginsdk.Action{
		Usage:       "list-categories",
		Description: "List all categories and their extensions",
		Run:         c.listCategories,
	})
	c.Register("show-stats", pluginsdk.Action{
		Usage:       "show-stats",
		Description: "Show statistics for entries decorated so far",
		Run:         c.showStats,
	})
	return c
}

func loadRules(path string) []CategoryRule {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultRules()
	}
	var rules []CategoryRule
	if err := yaml.Unmarshal(data, &rules); err != nil || len(rules) == 0 {
		return DefaultRules()
	}
	return rules
}

func (c *Categorizer) saveRules() error {
	if c.rulesPath == "" {
		return nil
	}
	data, err := yaml.Marshal(c.rules)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.rulesPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.rulesPath, data, 0o644)
}

func (c *Categorizer) Name() string    { return CategorizerName }
func (c *Categorizer) Version() string { return categorizerVersion }
func (c *Categorizer) Description() string {
	return "Categorizes files by extension with colored labels"
}
func (c *Categorizer) SupportedFormats() []string { return []string{"default", "long"} }

func (c *Categorizer) Decorate(e *wire.Entry) error {
	if e.Metadata.IsDir() {
		return nil
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Path)), ".")
	if ext == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rule := range c.rules {
		if !rule.matches(ext, e.Metadata.Size) {
			continue
		}
		e.CustomFields[fieldCategory] = rule.Name
		e.CustomFields[fieldColor] = rule.Color
		sub := rule.subcategory(ext)
		if sub != "" {
			e.CustomFields[fieldSubcategory] = sub
		}

		st, ok := c.stats[rule.Name]
		if !ok {
			st = &categoryStats{subs: make(map[string]int)}
			c.stats[rule.Name] = st
		}
		st.count++
		st.totalSize += e.Metadata.Size
		if sub != "" {
			st.subs[sub]++
		}
		return nil
	}
	return nil
}

func (c *Categorizer) FormatField(e wire.Entry, format string) (string, bool) {
	category, ok := e.CustomFields[fieldCategory]
	if !ok {
		return "", false
	}
	label := "[" + colorize(category, e.CustomFields[fieldColor]) + "]"
	switch format {
	case "default":
		return label, true
	case "long":
		if sub, ok := e.CustomFields[fieldSubcategory]; ok {
			return label + " (" + sub + ")", true
		}
		return label, true
	}
	return "", false
}

func (c *Categorizer) addCategory(_ io.Writer, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: add-category <name> <color> <ext1,ext2,...> [description]")
	}
	rule := CategoryRule{
		Name:       args[0],
		Color:      args[1],
		Extensions: splitList(args[2]),
	}
	if len(args) > 3 {
		rule.Description = args[3]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.ContainsFunc(c.rules, func(r CategoryRule) bool { return r.Name == rule.Name }) {
		return fmt.Errorf("category %q already exists", rule.Name)
	}
	c.rules = append(c.rules, rule)
	return c.saveRules()
}

func (c *Categorizer) addSubcategory(_ io.Writer, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: add-subcategory <category> <subcategory> <ext1,ext2,...>")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.rules, func(r CategoryRule) bool { return r.Name == args[0] })
	if i < 0 {
		return fmt.Errorf("category %q not found", args[0])
	}
	if c.rules[i].Subcategories == nil {
		c.rules[i].Subcategories = make(map[string][]string)
	}
	c.rules[i].Subcategories[args[1]] = splitList(args[2])
	return c.saveRules()
}

func (c *Categorizer) listCategories(w io.Writer, _ []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rule := range c.rules {
		fmt.Fprintf(w, "\n%s (%s)\n", colorize(rule.Name, rule.Color), rule.Description)
		fmt.Fprintf(w, "  Extensions: %s\n", strings.Join(rule.Extensions, ", "))
		if len(rule.Subcategories) > 0 {
			fmt.Fprintln(w, "  Subcategories:")
			for _, sub := range sortedKeys(rule.Subcategories) {
				fmt.Fprintf(w, "    %s: %s\n", sub, strings.Join(rule.Subcategories[sub], ", "))
			}
		}
	}
	return nil
}

func (c *Categorizer) showStats(w io.Writer, _ []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(w, "Category Statistics:")
	for _, name := range sortedKeys(c.stats) {
		st := c.stats[name]
		color := "white"
		if i := slices.IndexFunc(c.rules, func(r CategoryRule) bool { return r.Name == name }); i >= 0 {
			color = c.rules[i].Color
		}
		fmt.Fprintf(w, "\n%s (%d files, %s)\n", colorize(name, color), st.count, humanize.IBytes(st.totalSize))
		for _, sub := range sortedKeys(st.subs) {
			fmt.Fprintf(w, "  %s (%d files)\n", sub, st.subs[sub])
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), "."); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
