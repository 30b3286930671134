package service

import (
	"strconv"
	"strings"
)

// LetterAt 0 -> "A"
func LetterAt(index int) string {
	return string(rune('A' + index))
}

// LetterIndex "C" -> 2；非单个字母返回 -1
func LetterIndex(letter string) int {
	if len(letter) != 1 || !isASCIILetter(letter[0]) {
		return -1
	}
	return int(strings.ToUpper(letter)[0] - 'A')
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// NormalizeAnswer 将原始答案转换为大写字母。
// 单个字母直接大写返回（不校验是否超出选项范围）；
// 整数优先按 0 起始下标解释，其次按 1 起始；其余返回 false。
func NormalizeAnswer(raw string, numChoices int) (string, bool) {
	v := strings.TrimSpace(raw)
	if len(v) == 1 && isASCIILetter(v[0]) {
		return strings.ToUpper(v), true
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return "", false
	}
	if n >= 0 && n < numChoices {
		return LetterAt(n), true
	}
	if n >= 1 && n <= numChoices {
		return LetterAt(n - 1), true
	}
	return "", false
}

// ResolveCorrectLetter 规范化题目的正确答案；无法按字母/下标解析时，
// 尝试与选项文本（忽略大小写）匹配，仍失败返回空串
func ResolveCorrectLetter(correct string, choices []string) string {
	if letter, ok := NormalizeAnswer(correct, len(choices)); ok {
		return letter
	}
	want := strings.ToLower(strings.TrimSpace(correct))
	if want == "" {
		return ""
	}
	for i, c := range choices {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return LetterAt(i)
		}
	}
	return ""
}

// ChoiceText 字母对应的选项文本，越界返回空串
func ChoiceText(letter string, choices []string) string {
	idx := LetterIndex(letter)
	if idx < 0 || idx >= len(choices) {
		return ""
	}
	return choices[idx]
}
