//go:build ignore

// Запуск: go run launcher.go
//
// Поднимает локальный API в фоне и собирает CLI рядом.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

func main() {
	fmt.Println("Запуск Requiety...")

	clientName := "requiety"
	if runtime.GOOS == "windows" {
		clientName = "requiety.exe"
	}
	// запускаем сервер на фоне
	server := exec.Command("go", "run", "./cmd/server")
	server.Stdout = os.Stdout
	server.Stderr = os.Stderr

	if err := server.Start(); err != nil {
		fmt.Printf("Ошибка запуска сервера: %v\n", err)
		return
	}

	time.Sleep(3 * time.Second)
	// собираем клиента
	if _, err := os.Stat(clientName); os.IsNotExist(err) {
		fmt.Println("Сборка клиента...")
		build := exec.Command("go", "build", "-o", clientName, "./cmd/requiety")
		build.Stdout = os.Stdout
		build.Stderr = os.Stderr
		if err := build.Run(); err != nil {
			fmt.Printf("Ошибка сборки клиента: %v\n", err)
		}
	}

	fmt.Println("Сервер запущен, токен записан в <data_dir>/credentials.json")
	// пишем как управлять запущенным API
	if runtime.GOOS == "windows" {
		fmt.Println("Данный терминал не закрывай. Открой новый и запускай: .\\requiety.exe remote status")
	} else {
		fmt.Println("Данный терминал не закрывай. Открой новый и запускай: ./requiety remote status")
	}

	server.Wait()
}
