//go:build ignore

// generate_hash.go — утилита для ручного сброса пароля.
// Запуск: go run scripts/generate_hash.go <email> <новый_пароль>
//
// Печатает SQL, который нужно выполнить в базе.
package main

import (
	"fmt"
	"os"
	"strings"

	"serotonyl.ru/whistle/internal/features/auth"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Использование: go run scripts/generate_hash.go <email> <пароль>")
		os.Exit(1)
	}

	email := strings.ToLower(strings.TrimSpace(os.Args[1]))
	hash, err := auth.HashPassword(os.Args[2])
	if err != nil {
		fmt.Printf("Ошибка генерации хеша: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Выполните в базе:")
	fmt.Printf("UPDATE credentials SET password_hash = '%s' WHERE email = '%s';\n", hash, strings.ReplaceAll(email, "'", "''"))
	fmt.Println("DELETE FROM auth_login_attempts WHERE email = '" + strings.ReplaceAll(email, "'", "''") + "';")
}
