package domain

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TotalRegions 日本一级行政区（都道府县）的数量。
const TotalRegions = 47

// RegionID 都道府县编号，有效范围 1..47，文本形式为 "JP-NN"。
type RegionID uint8

// Region 表示一个都道府县的静态参考数据。
type Region struct {
	ID     RegionID `json:"id"`
	Name   string   `json:"name"`
	NameJa string   `json:"name_ja"`
}

//go:embed regions.yaml
var regionsYAML []byte

// regionFile 对应 regions.yaml 的结构
type regionFile struct {
	Regions []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		NameJa string `yaml:"name_ja"`
	} `yaml:"regions"`
}

// registry 下标即 RegionID，下标 0 不使用。进程启动时加载一次，之后只读。
var registry = mustLoadRegions(regionsYAML)

func mustLoadRegions(data []byte) [TotalRegions + 1]Region {
	regions, err := loadRegions(data)
	if err != nil {
		panic(fmt.Sprintf("domain: invalid embedded region registry: %v", err))
	}
	return regions
}

// loadRegions 解析并校验注册表：必须恰好包含 JP-01..JP-47 各一次。
func loadRegions(data []byte) ([TotalRegions + 1]Region, error) {
	var out [TotalRegions + 1]Region
	var file regionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return out, fmt.Errorf("failed to parse region yaml: %w", err)
	}
	if len(file.Regions) != TotalRegions {
		return out, fmt.Errorf("expected %d regions, got %d", TotalRegions, len(file.Regions))
	}
	for _, r := range file.Regions {
		id, err := ParseRegionID(r.ID)
		if err != nil {
			return out, err
		}
		if out[id].ID != 0 {
			return out, fmt.Errorf("duplicate region %s", id)
		}
		if r.Name == "" || r.NameJa == "" {
			return out, fmt.Errorf("region %s is missing a display name", id)
		}
		out[id] = Region{ID: id, Name: r.Name, NameJa: r.NameJa}
	}
	return out, nil
}

// ParseRegionID 将 "JP-NN" 解析为 RegionID。超出 47 个已知代码时返回 ErrUnknownRegion。
func ParseRegionID(s string) (RegionID, error) {
	num, ok := strings.CutPrefix(s, "JP-")
	if !ok || len(num) != 2 || !isDigit(num[0]) || !isDigit(num[1]) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRegion, s)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || n > TotalRegions {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRegion, s)
	}
	return RegionID(n), nil
}

// Valid 判断编号是否属于已知的 47 个都道府县
func (id RegionID) Valid() bool {
	return id >= 1 && id <= TotalRegions
}

func (id RegionID) String() string {
	return fmt.Sprintf("JP-%02d", uint8(id))
}

// MarshalText 使 RegionID 可以作为 JSON 对象的键
func (id RegionID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRegion, uint8(id))
	}
	return []byte(id.String()), nil
}

func (id *RegionID) UnmarshalText(text []byte) error {
	parsed, err := ParseRegionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AllRegions 按编号升序返回全部都道府县。
func AllRegions() []Region {
	out := make([]Region, 0, TotalRegions)
	for id := RegionID(1); id <= TotalRegions; id++ {
		out = append(out, registry[id])
	}
	return out
}

// RegionIDs 按编号升序返回全部 RegionID
func RegionIDs() []RegionID {
	ids := make([]RegionID, 0, TotalRegions)
	for id := RegionID(1); id <= TotalRegions; id++ {
		ids = append(ids, id)
	}
	return ids
}

// LookupRegion 查询都道府县的显示名称。
func LookupRegion(id RegionID) (Region, bool) {
	if !id.Valid() {
		return Region{}, false
	}
	return registry[id], true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
