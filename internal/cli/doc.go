// Package cli реализует операторский инструмент командной строки Conveyor.
//
// # Обзор
//
// CLI — инструмент администратора: работает напрямую с Postgres и Redis
// (API-сервера в системе нет). Используется для управления лимитами
// организаций, историей обработки файлов и просмотра runs.
//
// # Ключевые компоненты
//
// ## Deps
//
// Подключения к хранилищам, создаваемые из переменных окружения
// (DB_URL, REDIS_URL). Команды принимают depsFn — замыкание для
// ленивого подключения после парсинга флагов.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - ratelimit: show, set
//   - history:   clear, interval
//   - run:       list, show
package cli
