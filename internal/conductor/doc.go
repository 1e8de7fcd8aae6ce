// Package conductor реализует надёжную доставку dispatch.
//
// Conductor принимает команды из очереди conductor.inbound:
// updateClientSettings, deleteClientSettings, createDispatch, deleteDispatch.
// createDispatch классифицируется по triggersAt с допуском G:
// устаревший dispatch отбрасывается, слишком ранний откладывается
// через Trigger, остальные отправляются в фоне с повторами.
//
// Статусы dispatch при отправке:
//
//	received → acquired → done
//	             ↓   ↑
//	            error
//
// Каждая ошибка отправки добавляет failure reason и увеличивает retryCount.
// После исчерпания повторов dispatch остаётся в error.
package conductor
