package video

import "regexp"

// IDLength — длина идентификатора ролика на YouTube.
const IDLength = 11

var idPattern = regexp.MustCompile(`^.*(youtu.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// ExtractID достаёт 11-символьный идентификатор ролика из ссылки.
// Пустая или нераспознанная ссылка — не ошибка, просто ok=false.
func ExtractID(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	m := idPattern.FindStringSubmatch(url)
	if m == nil || len(m[2]) != IDLength {
		return "", false
	}
	return m[2], true
}
