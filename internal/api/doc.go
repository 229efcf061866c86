// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (manager, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - task_handler.go     — обработчики для /tasks
//   - worker_handler.go   — обработчики для /workers, /queue, /maintenance
//   - template_handler.go — обработчики для /templates
//   - payment_handler.go  — обработчики для /accesscodes, /payments
//
// API предоставляет REST endpoints для оператора: управление tasks,
// шаблонами, workers и кодами доступа.
package api
