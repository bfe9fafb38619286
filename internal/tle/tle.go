// Package tle парсит двухстрочные наборы орбитальных элементов (TLE) и
// проверяет их формат по правилам NORAD.
package tle

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Ошибки парсинга TLE.
var (
	ErrInvalidFormat   = errors.New("tle: invalid format")
	ErrInvalidChecksum = errors.New("tle: invalid checksum")
	ErrNoradMismatch   = errors.New("tle: NORAD ID mismatch between lines")
)

// line1Re и line2Re реализуют формат, зафиксированный для этого сервиса
// (см. SPEC_FULL.md §6.2).
var (
	line1Re = regexp.MustCompile(`^\d \d{5}\w [\d ]{5}[\d\w ]{3} \d{5}\.\d{8} [ -]\.\d{8} [ -]\d{5}-\d [ -]\d{5}-\d 0 [ \d]\d{4}$`)
	line2Re = regexp.MustCompile(`^\d \d{5} [\d ]{3}\.\d{4} [\d ]{3}\.\d{4} \d{7} [\d ]{3}\.\d{4} [\d ]{3}\.\d{4} [\d ]{2}\.\d{8}[ \d]{6}$`)
)

// TLE представляет один набор орбитальных элементов.
type TLE struct {
	Name    string // Имя спутника из 3-строчного формата, опционально.
	NoradID int
	Epoch   time.Time
	Line1   string
	Line2   string
}

// ParseLines разбирает пару строк TLE (без имени). Возвращает
// ErrInvalidFormat при несовпадении с регулярным выражением формата и
// ErrInvalidChecksum при ошибке контрольной суммы.
func ParseLines(line1, line2 string) (*TLE, error) {
	return parse("", line1, line2)
}

// ParseNamed разбирает 3-строчный формат: имя, строка 1, строка 2.
func ParseNamed(name, line1, line2 string) (*TLE, error) {
	return parse(strings.TrimSpace(name), line1, line2)
}

// ParseString разбирает TLE из произвольного текстового блока: либо две
// строки (2-line), либо три (имя + 2 строки, имя опционально начинающееся
// с "0 ").
func ParseString(s string) (*TLE, error) {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}

	switch len(lines) {
	case 2:
		return ParseLines(lines[0], lines[1])
	case 3:
		name := strings.TrimPrefix(lines[0], "0 ")
		return ParseNamed(name, lines[1], lines[2])
	default:
		return nil, fmt.Errorf("%w: expected 2 or 3 non-empty lines, got %d", ErrInvalidFormat, len(lines))
	}
}

func parse(name, line1, line2 string) (*TLE, error) {
	line1 = strings.TrimRight(line1, " \t")
	line2 = strings.TrimRight(line2, " \t")

	if !line1Re.MatchString(line1) {
		return nil, fmt.Errorf("%w: line1 %q", ErrInvalidFormat, line1)
	}
	if !line2Re.MatchString(line2) {
		return nil, fmt.Errorf("%w: line2 %q", ErrInvalidFormat, line2)
	}

	if !validChecksum(line1) {
		return nil, fmt.Errorf("%w: line1", ErrInvalidChecksum)
	}
	if !validChecksum(line2) {
		return nil, fmt.Errorf("%w: line2", ErrInvalidChecksum)
	}

	norad1, err := strconv.Atoi(line1[2:7])
	if err != nil {
		return nil, fmt.Errorf("%w: NORAD ID on line1: %v", ErrInvalidFormat, err)
	}
	norad2, err := strconv.Atoi(line2[2:7])
	if err != nil {
		return nil, fmt.Errorf("%w: NORAD ID on line2: %v", ErrInvalidFormat, err)
	}
	if norad1 != norad2 {
		return nil, fmt.Errorf("%w: line1=%d line2=%d", ErrNoradMismatch, norad1, norad2)
	}

	epoch, err := parseEpoch(line1[18:32])
	if err != nil {
		return nil, fmt.Errorf("%w: epoch: %v", ErrInvalidFormat, err)
	}

	return &TLE{
		Name:    name,
		NoradID: norad1,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch декодирует эпоху формата YYDDD.DDDDDDDD (cols 19-32 строки 1).
// year = int(line1[18:20]) + (2000, если <=50, иначе 1900); day — день года.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 7 {
		return time.Time{}, fmt.Errorf("epoch field too short: %q", s)
	}

	yy, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("year: %w", err)
	}

	year := yy + 1900
	if yy <= 50 {
		year = yy + 2000
	}

	dayFrac, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("day of year: %w", err)
	}

	base := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration((dayFrac - 1) * 24 * float64(time.Hour))), nil
}

// validChecksum проверяет контрольную сумму строки по алгоритму Modulo-10:
// сумма всех цифр плюс 1 за каждый минус, mod 10, равна последней цифре.
func validChecksum(line string) bool {
	if len(line) == 0 {
		return false
	}

	expected := int(line[len(line)-1] - '0')
	return checksum(line[:len(line)-1]) == expected
}

func checksum(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// CacheFileName возвращает имя кэш-файла "{norad_id}_{YYYY-MM-DD}.tle".
func CacheFileName(noradID int, epoch time.Time) string {
	return fmt.Sprintf("%d_%s.tle", noradID, epoch.UTC().Format("2006-01-02"))
}

// String возвращает TLE в текстовом виде для записи в кэш-файл.
func (t *TLE) String() string {
	return t.Line1 + "\n" + t.Line2
}
