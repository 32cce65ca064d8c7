package contract

import (
    "errors"
    "fmt"
    "path/filepath"
    "testing"
)

// TestNormalizeDatasetID 验证路径规范化逻辑。
func TestNormalizeDatasetID(t *testing.T) {
    wpath := filepath.Join("a", "b", "c")
    basicCases := map[string]string{
        wpath: "a/b/c",
        "./x/../y": "y",
        "": ".",
    }
    for in, want := range basicCases {
        got := NormalizeDatasetID(in)
        if string(got) != want {
            t.Fatalf("基础测试 %s -> %s, 预期 %s", in, got, want)
        }
    }

    // 扩展测试用例 - 系统化覆盖
    tests := []struct {
        name     string
        input    string
        expected string
    }{
        // 反斜杠转换
        {"Windows路径", "C:\\Users\\test\\file.txt", "C:/Users/test/file.txt"},
        {"相对路径反斜杠", "src\\main\\java\\App.java", "src/main/java/App.java"},
        
        // path.Clean 功能
        {"清理多余斜杠", "path//to///file.txt", "path/to/file.txt"},
        {"清理当前目录", "path/./to/./file.txt", "path/to/file.txt"},
        {"处理父目录", "path/to/../from/file.txt", "path/from/file.txt"},
        
        // 边界情况
        {"单个点", ".", "."},
        {"双点", "..", ".."},
        {"根路径", "/", "/"},
        {"Windows根", "C:\\", "C:"},
        
        // 跨平台混合分隔符
        {"混合分隔符", "C:\\Users/test\\Documents/file.txt", "C:/Users/test/Documents/file.txt"},
        {"复杂混合路径", "src\\..\\test/./data\\\\file.txt", "test/data/file.txt"},
        
        // 特殊字符
        {"中文路径", "项目\\文档/测试.txt", "项目/文档/测试.txt"},
        {"空格路径", "My Documents\\My File.txt", "My Documents/My File.txt"},
        
        // 绝对路径
        {"Unix绝对路径", "/home/user/../admin/file.txt", "/home/admin/file.txt"},
        {"Windows绝对路径", "C:\\Program Files\\..\\Windows\\System32", "C:/Windows/System32"},
        
        // 极端情况
        {"仅分隔符", "\\\\\\///", "/"},
        {"复杂父目录", "a\\b\\c\\..\\..\\..\\..\\d", "../d"},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            result := NormalizeDatasetID(tt.input)
            if string(result) != tt.expected {
                t.Errorf("NormalizeDatasetID(%q) = %q, expected %q", tt.input, result, tt.expected)
            }
        })
    }
}

// BenchmarkNormalizeDatasetID 性能基准测试
func BenchmarkNormalizeDatasetID(b *testing.B) {
    testPaths := []string{
        "C:\\Users\\test\\Documents\\file.txt",
        "src/main/java/../../../test/data/file.txt",
        "path//to///many////slashes/file.txt",
        "very/long/path/with/many/segments/and/mixed\\separators/file.txt",
    }

    b.ResetTimer()
    for i := 0; i < b.N; i++ {
        for _, path := range testPaths {
            NormalizeDatasetID(path)
        }
    }
}

// TestSortKeyCompare 数值优先、字典序兜底。
func TestSortKeyCompare(t *testing.T) {
    cases := []struct {
        a, b SortKey
        want int
    }{
        {"2", "10", -1},
        {"10", "2", 1},
        {"1.50", "1.5", 0},
        {"-3", "2", -1},
        {"b", "a", 1},
        {"a", "a", 0},
        {"10", "a", -1}, // 一侧非数字，按字典序
    }
    for _, c := range cases {
        if got := c.a.Compare(c.b); got != c.want {
            t.Fatalf("%q cmp %q = %d, want %d", c.a, c.b, got, c.want)
        }
    }
}

// TestErrorTaxonomy 校验哨兵错误的包装关系。
func TestErrorTaxonomy(t *testing.T) {
    if !errors.Is(ErrDegenerateRange, ErrConfiguration) {
        t.Fatalf("ErrDegenerateRange 应归类为配置错误")
    }
    if errors.Is(ErrDegenerateGroup, ErrConfiguration) {
        t.Fatalf("退化组不应中止运行")
    }
    pe := &PointError{PointID: 7, Group: "A", Err: fmt.Errorf("wrap: %w", ErrGeometry)}
    var err error = pe
    if !errors.Is(err, ErrGeometry) {
        t.Fatalf("PointError 未透传 Unwrap")
    }
    var got *PointError
    if !errors.As(fmt.Errorf("outer: %w", err), &got) || got.PointID != 7 {
        t.Fatalf("errors.As 失败: %v", got)
    }
    if pe.Error() != `point 7 (group "A"): wrap: geometry construction error` {
        t.Fatalf("unexpected msg: %s", pe.Error())
    }
}

// TestPositionString 位置枚举的日志文本。
func TestPositionString(t *testing.T) {
    want := map[Position]string{
        PositionFirst:       "first",
        PositionInterior:    "interior",
        PositionPenultimate: "penultimate",
        PositionLast:        "last",
        PositionDegenerate:  "degenerate",
    }
    for p, s := range want {
        if p.String() != s {
            t.Fatalf("%d -> %s, want %s", p, p.String(), s)
        }
    }
}

func TestPointCoord(t *testing.T) {
    p := Point{X: 1.5, Y: -2}
    c := p.Coord()
    if c[0] != 1.5 || c[1] != -2 {
        t.Fatalf("coord = %v", c)
    }
}
