// Package store — entity store: упорядоченное key-value хранилище
// с prefix-сканированием и атомарными батчами.
//
// Реализации:
//   - pg.go  — PostgreSQL через pgx (production)
//   - mem.go — in-memory (тесты, локальная разработка)
//
// Раскладка ключей описана в keys.go:
//
//	tasks/active/<id>, tasks/completed/<id>, tasks/backlog/<id>,
//	worker/<peerID>, payment/<paymentID>, templates/<templateID>,
//	accesscodes/<code>
package store
