// Package scheduling — очередь worker'ов и admission control.
//
// Состав:
//   - queue.go       — in-memory очередь подключённых peer'ов
//   - workers.go     — персистентные записи worker'ов
//   - accesscodes.go — одноразовые коды доступа
//   - scheduler.go   — connect/select/disconnect поверх очереди и записей
//
// Выбор worker'а пропускает занятых (незакрытых задач >= лимита) и
// убирает выбранного из очереди; обратно его ставит вызывающая
// сторона, когда доставка task состоялась.
package scheduling
