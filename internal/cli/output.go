package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Output управляет форматированием вывода CLI.
//
// Данные (dispatch, настройки, аренды) пишутся в w таблицей или JSON,
// сообщения о ходе команды — в errW.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

var dispatchHeaders = []string{"ID", "STATUS", "RETRIES", "TRIGGERS_AT", "RECIPIENT", "UPDATED"}

// Dispatch выводит один dispatch; в табличном режиме — вместе с
// историей ошибок отправки.
func (o *Output) Dispatch(d *DispatchResponse) error {
	if o.jsonMode {
		return o.JSON(d)
	}
	o.Table(dispatchHeaders, [][]string{dispatchRow(*d)})

	if len(d.FailureReasons) > 0 {
		fmt.Fprintln(o.w)
		rows := make([][]string, len(d.FailureReasons))
		for i, fr := range d.FailureReasons {
			rows[i] = []string{strconv.Itoa(i + 1), fr.Message}
		}
		o.Table([]string{"#", "FAILURE"}, rows)
	}
	return nil
}

// Dispatches выводит список dispatch'ей отправителя.
func (o *Output) Dispatches(list []DispatchResponse) error {
	if o.jsonMode {
		return o.JSON(list)
	}
	rows := make([][]string, len(list))
	for i, d := range list {
		rows[i] = dispatchRow(d)
	}
	o.Table(dispatchHeaders, rows)
	return nil
}

// Projection выводит проекцию dispatch'ей: колонки — запрошенные поля
// в порядке запроса, отсутствующие значения — "-".
func (o *Output) Projection(fields []string, rows []map[string]any) error {
	if o.jsonMode {
		return o.JSON(rows)
	}
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = strings.ToUpper(f)
	}
	table := make([][]string, len(rows))
	for i, row := range rows {
		table[i] = make([]string, len(fields))
		for j, f := range fields {
			table[i][j] = orDash(formatValue(row[f]))
		}
	}
	o.Table(headers, table)
	return nil
}

// Trigger выводит отложенный trigger dispatch.
func (o *Output) Trigger(tr *TriggerResponse) error {
	if o.jsonMode {
		return o.JSON(tr)
	}
	o.Table(
		[]string{"DISPATCH_ID", "EXPIRE_AT", "TRIGGERED_ID"},
		[][]string{{tr.DispatchID, tr.ExpireAt, tr.TriggeredID}},
	)
	return nil
}

// Purged сообщает число удалённых dispatch'ей.
func (o *Output) Purged(resp *PurgeResponse) error {
	if o.jsonMode {
		return o.JSON(resp)
	}
	o.Success(fmt.Sprintf("Deleted %d dispatch(es)", resp.Deleted))
	return nil
}

var settingsHeaders = []string{"ID", "FIRST_NAME", "PHONE", "PLATFORM", "PUSH", "REMINDERS"}

// Settings выводит настройки клиента.
func (o *Output) Settings(s *SettingsResponse) error {
	if o.jsonMode {
		return o.JSON(s)
	}
	o.Table(settingsHeaders, [][]string{{
		s.ID,
		orDash(s.FirstName),
		orDash(s.Phone),
		orDash(s.Platform),
		strconv.FormatBool(s.IsPushNotificationsEnabled),
		strconv.FormatBool(s.IsAppointmentsReminderEnabled),
	}})
	return nil
}

// Lease выводит аренду лидерства домена планировщика.
func (o *Output) Lease(l *LeaseResponse) error {
	if o.jsonMode {
		return o.JSON(l)
	}
	o.Table(
		[]string{"LEADER_TYPE", "OWNER", "UPDATED", "EXPIRED"},
		[][]string{{l.LeaderType, orDash(l.OwnerID), l.UpdatedAt, strconv.FormatBool(l.Expired)}},
	)
	return nil
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами. Ошибка кодирования
// сообщается в errW и возвращается, чтобы команда завершилась с ошибкой.
func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		err = fmt.Errorf("encode output: %w", err)
		o.Error(err.Error())
		return err
	}
	return nil
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

func dispatchRow(d DispatchResponse) []string {
	return []string{d.DispatchID, d.Status, strconv.Itoa(d.RetryCount), orDash(d.TriggersAt), orDash(d.RecipientClientID), d.UpdatedAt}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatValue печатает значение проекции; JSON-числа приходят как float64.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
