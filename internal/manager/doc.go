// Package manager — центральный координатор системы.
//
// Manager принимает workers (admission control через scheduling),
// создаёт и распределяет tasks (event log в taskstore), следит за
// дедлайнами периодической сверкой и выписывает подписанные платежи
// за сданную работу (payments). Вся связь с workers идёт через
// transport: один обработчик на вид сообщения.
package manager
