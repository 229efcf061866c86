// Package cli реализует инструмент командной строки Foreman.
//
// CLI — клиентская утилита для взаимодействия с Foreman API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// Cobra-команды организованы по ресурсам:
//   - task:     list, create, show, assign
//   - worker:   list, show, ban, unban, queue
//   - template: list, create, show
//   - payment:  show
//   - admin:    access-code, maintenance
//
// Каждая группа создаётся через фабричную функцию (NewTaskCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
