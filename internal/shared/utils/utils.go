// Package utils — мелкие помощники для частичных обновлений.
//
// Patch-структуры репозиториев используют указатели: nil — поле
// не менять. Ptr и StrPtr позволяют собрать такой patch из значения
// флага или литерала без промежуточной переменной.
package utils

// Ptr возвращает указатель на копию v.
func Ptr[T any](v T) *T {
	return &v
}

// StrPtr — Ptr для строк.
func StrPtr(s string) *string {
	return Ptr(s)
}
