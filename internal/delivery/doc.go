// Package delivery — единый путь «доставить в момент t с политикой повторов».
//
// Напоминания планировщика используют NoRetry, dispatch'и conductor'а —
// фиксированную задержку и потолок повторов. Оба пути проходят через
// Deliverer.DeliverAt: будущий момент ставится таймером в timer.Registry,
// наступивший исполняется сразу в отдельной горутине.
package delivery
