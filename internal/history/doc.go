// Package history дедуплицирует обработку файлов.
//
// Запись истории — результат обработки одного файла внутри workflow,
// идентифицируемый парой (workflow_id, cache_key). Cache key —
// sha256-отпечаток содержимого файла и конфигурации обработки
// (domain.FileCacheKey): тот же файл с той же конфигурацией даёт
// тот же ключ, изменение любого из двух — новый ключ и новую обработку.
//
// Правила принятия решения (Lookup):
//   - пустой cache key — файл обрабатывается всегда
//   - записи нет — файл обрабатывается
//   - запись истекла по reprocessing_interval_days — файл обрабатывается
//     заново, истёкшая запись остаётся в БД
//   - действующая запись — файл пропускается
//
// Конкурентная запись (Record) разрешается на уровне БД:
// ON CONFLICT DO NOTHING + чтение победителя. Два воркера, одновременно
// зафиксировавшие один файл, оба получают одну и ту же запись без ошибок.
package history
