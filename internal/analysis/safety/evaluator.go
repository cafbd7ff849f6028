// Package safety 判断一轮对话是否需要转交给危机角色。
//
// 匹配采用忽略大小写的子串判断，刻意保持粗粒度："I hit a home run" 同样会触发。
// 不要改成按词匹配。
package safety

import (
	"strings"

	"github.com/sparkforge/spark-os/backend/internal/model/persona"
)

// ShouldEscalate 判断消息是否必须转交危机角色。危机角色本身不会再次升级。
func ShouldEscalate(message, activePersonaID string, triggers []string) bool {
	if activePersonaID == persona.CrisisID {
		return false
	}
	_, ok := MatchedTrigger(message, triggers)
	return ok
}

// MatchedTrigger 返回消息中命中的第一个触发词。
func MatchedTrigger(message string, triggers []string) (string, bool) {
	normalized := strings.ToLower(message)
	if strings.TrimSpace(normalized) == "" {
		return "", false
	}
	for _, trigger := range triggers {
		word := strings.ToLower(trigger)
		if word == "" {
			continue
		}
		if strings.Contains(normalized, word) {
			return trigger, true
		}
	}
	return "", false
}
