package repository

import "strings"

// prefixed добавляет алиас таблицы к каждой колонке списка через запятую.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
