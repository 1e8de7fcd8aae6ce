// Package cli реализует инструмент командной строки Courier.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Courier API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Courier API: запросы, разбор ответов
// (DataResponse, ListResponse, ErrorResponse) и ошибки.
//
//	client := cli.NewClient("http://localhost:8080")
//	d, err := client.GetDispatch("d1")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
// courier dispatch list --sender u1 --json | jq .
//
// ## Commands
//
// Cobra-команды по ресурсам:
//   - dispatch: get, list, submit, cancel, purge, trigger
//   - lease: get
//   - settings: get, set, delete
//
// Фабрики групп (NewDispatchCmd и т.д.) принимают clientFn и outputFn,
// чтобы Client и Output создавались после разбора PersistentFlags.
package cli
