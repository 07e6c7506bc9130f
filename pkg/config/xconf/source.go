package xconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 定义配置格式。
type Format string

// 支持的配置格式。
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Validator 由需要在加载后自检的配置类型实现。
type Validator interface {
	Validate() error
}

// Source 是一份已解析的配置。
type Source struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string
	format Format
	opts   options
}

// Load 从文件加载配置，按扩展名识别格式。空文件得到空配置。
func Load(path string, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	s := newSource(path, format, opts)
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadBytes 从字节数据加载配置，格式须显式指定。
func LoadBytes(data []byte, format Format, opts ...Option) (*Source, error) {
	if !format.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	s := newSource("", format, opts)
	k, err := s.parse(data)
	if err != nil {
		return nil, err
	}
	s.k = k
	return s, nil
}

func newSource(path string, format Format, opts []Option) *Source {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Source{path: path, format: format, opts: o}
}

// Client 返回当前的 koanf 实例。
func (s *Source) Client() *koanf.Koanf {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k
}

// Path 返回配置文件路径，从字节数据创建时为空。
func (s *Source) Path() string { return s.path }

// Format 返回配置格式。
func (s *Source) Format() Format { return s.format }

// Unmarshal 把 path 下的配置反序列化到 target。path 为空时使用整棵树。
func (s *Source) Unmarshal(path string, target any) error {
	k := s.Client()
	if err := k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: s.opts.tag}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnmarshalFailed, path, err)
	}
	return nil
}

// Reload 重新读取配置文件。解析失败时保留旧配置。
func (s *Source) Reload() error {
	if s.path == "" {
		return ErrNotReloadable
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := s.parse(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.k = k
	s.mu.Unlock()
	return nil
}

func (s *Source) parse(data []byte) (*koanf.Koanf, error) {
	k := koanf.New(s.opts.delim)
	if len(data) == 0 {
		return k, nil
	}
	var parser koanf.Parser
	switch s.format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return k, nil
}

// =============================================================================
// 类型化解码
// =============================================================================

// Decode 以 defaults 为底反序列化 path 下的配置：文件中出现的键覆盖
// 对应字段，其余字段保持 defaults 中的值。T 实现 [Validator] 时随后校验。
func Decode[T any](path string, src *Source, defaults T) (T, error) {
	if src == nil {
		return defaults, fmt.Errorf("%w: nil source", ErrLoadFailed)
	}
	out := defaults
	if err := src.Unmarshal(path, &out); err != nil {
		return defaults, err
	}
	if v, ok := any(out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return defaults, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return out, nil
}

// DecodeFile 是 Load 与 Decode 的组合。
func DecodeFile[T any](file, path string, defaults T, opts ...Option) (T, error) {
	src, err := Load(file, opts...)
	if err != nil {
		return defaults, err
	}
	return Decode(path, src, defaults)
}

// =============================================================================
// 内部辅助函数
// =============================================================================

// FormatOf 根据文件扩展名识别格式。
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func (f Format) valid() bool {
	return f == FormatYAML || f == FormatJSON
}

// IsNotExist 报告 err 是否由配置文件不存在引起。
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
