// Package aggregate 提供识别结果聚合能力
package aggregate

import (
	"sort"
	"strings"

	"movecrm-api/internal/domain/entity"
)

// match 单次别名匹配结果
type match struct {
	entry *entity.ItemCatalogEntry
	alias string
}

// Matcher 目录别名匹配器
// 匹配不区分大小写；规范名称与别名同等参与匹配
type Matcher struct {
	catalog []*entity.ItemCatalogEntry
}

// NewMatcher 创建匹配器
func NewMatcher(catalog []*entity.ItemCatalogEntry) *Matcher {
	return &Matcher{catalog: catalog}
}

// Match 将原始标签匹配到目录条目，未命中返回 nil
// 多个条目命中时取匹配别名最长者，仍并列时取 ID 最小者，保证可复现
func (m *Matcher) Match(rawLabel string) *entity.ItemCatalogEntry {
	label := strings.ToLower(strings.TrimSpace(rawLabel))
	if label == "" {
		return nil
	}

	var candidates []match
	for _, entry := range m.catalog {
		if !entry.IsActive {
			continue
		}
		names := append([]string{entry.Name}, entry.Aliases...)
		for _, name := range names {
			alias := strings.ToLower(strings.TrimSpace(name))
			if alias == "" {
				continue
			}
			if aliasMatches(label, alias) {
				candidates = append(candidates, match{entry: entry, alias: alias})
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].alias) != len(candidates[j].alias) {
			return len(candidates[i].alias) > len(candidates[j].alias)
		}
		return candidates[i].entry.ID < candidates[j].entry.ID
	})
	return candidates[0].entry
}

// aliasMatches 判断标签与别名是否匹配：相等或互为子串
func aliasMatches(label, alias string) bool {
	return label == alias || strings.Contains(label, alias) || strings.Contains(alias, label)
}
