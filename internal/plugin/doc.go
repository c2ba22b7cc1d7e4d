// Package plugin предоставляет реестр подключаемых стратегий.
//
// Реестр заполняется явными вызовами Register при bootstrap'е процесса
// и замораживается вызовом Load — после этого он неизменяем до рестарта
// и безопасен для конкурентных чтений без синхронизации.
//
// Категории:
//   - authentication, subscription — single-slot: не более одной активной
//     стратегии; две активных — фатальная ошибка конфигурации при Load
//   - modifier, processor, connector, notification — multi-slot: ноль
//     и более активных стратегий одновременно
//
// Ноль активных стратегий — не ошибка ни для одной категории:
// вызывающий откатывается на встроенное поведение.
package plugin
