// Package scheduler — планировщики таймеров с выборами лидера.
//
// В каждом домене (LeaderType) таймеры держит ровно одна реплика —
// владелец аренды в таблице leader_leases. Раз в минуту каждая
// реплика вызывает RunEveryMinute: follower пытается захватить
// свободную или просроченную аренду compare-and-swap'ом, лидер
// продлевает её. На переходе в лидеры вызывается InitCallbacks,
// который восстанавливает таймеры из БД.
//
// Структура:
//   - base.go        — Base: аренда, тик, реестр таймеров
//   - window.go      — окно регистрации таймеров
//   - appointment.go — напоминания о встречах и отложенные уведомления
//   - member.go      — напоминания новым member'ам
//   - events.go      — маршрутизация доменных событий из RabbitMQ
//   - cron.go        — расписание тика на robfig/cron
//
// Использование:
//
//	appts := scheduler.NewAppointmentScheduler(scheduler.AppointmentConfig{
//	    Base:           scheduler.BaseConfig{Leases: leaseRepo, Logger: logger},
//	    Appointments:   appointmentRepo,
//	    FutureNotifies: futureNotifyRepo,
//	    Notifier:       publisher,
//	    Links:          links,
//	    Shortener:      shortener,
//	    Renderer:       renderer,
//	})
//	appts.Start(ctx)
//	defer appts.Stop(context.Background())
package scheduler
