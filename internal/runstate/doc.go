// Package runstate управляет жизненным циклом execution.
//
// Жизненный цикл:
//
//	PENDING → INITIATED → QUEUED → READY → EXECUTING → COMPLETED
//	                                                 ↘ ERROR
//	                                                 ↘ STOPPED
//
// Machine переводит run между статусами с двумя гарантиями:
// финальный статус поглощает любые дальнейшие записи (no-op, не ошибка),
// обратный переход невозможен. Guard продублирован в SQL-предикате
// репозитория, поэтому гонка двух процессов разрешается на уровне БД.
//
// Finalizer поднимает итог завершённого run на владельца. Владелец —
// sum type: pipeline (обновляется агрегат последнего запуска) или
// standalone deployment (уведомление в notification queue). Сбой
// propagation логируется предупреждением и не проваливает вызывающего.
package runstate
