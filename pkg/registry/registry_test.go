package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"ribbonify/internal/width"
	"ribbonify/pkg/contract"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	if err := strictUnmarshal(nil, &o); err != nil || o.A != 0 {
		t.Fatalf("nil 输入失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1}`), &o); err != nil || o.A != 1 {
		t.Fatalf("合法 JSON 解析失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o); err == nil {
		t.Fatalf("未知字段应报错")
	}
}

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	t.Run("reader", func(t *testing.T) {
		if _, err := Reader["fs"](json.RawMessage(`{"extensions":[".csv"]}`)); err != nil {
			t.Fatalf("reader: %v", err)
		}
		if _, err := Reader["fs"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("reader 未对未知字段报错")
		}
	})
	t.Run("decoder", func(t *testing.T) {
		for _, name := range []string{"csv", "geojson"} {
			if _, err := Decoder[name](json.RawMessage(`{"sort":true}`)); err != nil {
				t.Fatalf("decoder %s: %v", name, err)
			}
			if _, err := Decoder[name](json.RawMessage(`{"x":1}`)); err == nil {
				t.Fatalf("decoder %s 未对未知字段报错", name)
			}
		}
	})
	t.Run("sink", func(t *testing.T) {
		tmp := t.TempDir()
		for _, name := range []string{"geojson", "csv", "svg"} {
			raw := json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, tmp))
			if _, err := Sink[name](raw, SinkEnv{Classed: true}); err != nil {
				t.Fatalf("sink %s: %v", name, err)
			}
			bad := json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"x":1}`, tmp))
			if _, err := Sink[name](bad, SinkEnv{}); err == nil {
				t.Fatalf("sink %s 未对未知字段报错", name)
			}
		}
		if _, err := Sink["pg"](json.RawMessage(`{"table":"t"}`), SinkEnv{}); !errors.Is(err, contract.ErrConfiguration) {
			t.Fatalf("pg 缺少 dsn 应为配置错误: %v", err)
		}
		s, err := Sink["pg"](json.RawMessage(`{"dsn":"postgres://localhost/x","table":"t"}`), SinkEnv{})
		if err != nil {
			t.Fatalf("pg: %v", err)
		}
		if c, ok := s.(interface{ Close() error }); ok {
			c.Close()
		}
	})
	t.Run("width", func(t *testing.T) {
		s := width.Summary{Min: 0, Max: 10, Count: 2}
		p := width.Params{Classes: 5, MinWidth: 1, MaxWidth: 5}
		for _, name := range []string{"stepped", "linear"} {
			m, err := Width[name](s, p)
			if err != nil || m == nil {
				t.Fatalf("width %s: %v", name, err)
			}
		}
		if _, err := Width["stepped"](width.Summary{Min: 1, Max: 1, Count: 1}, p); !errors.Is(err, contract.ErrDegenerateRange) {
			t.Fatalf("want degenerate range, got %v", err)
		}
	})
	t.Run("projector", func(t *testing.T) {
		for _, name := range []string{"projected", "geographic"} {
			if Projector[name] == nil {
				t.Fatalf("projector %s missing", name)
			}
		}
	})
}
