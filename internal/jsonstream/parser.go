// Package jsonstream выделяет целые JSON-значения из непрерывного текстового
// потока, который приходит произвольными кусками (фреймы WebSocket, чтение из
// сокета и т.п.). Границы кусков не обязаны совпадать с границами значений.
package jsonstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// после выдачи всех значений буфер большего объёма отпускаем
const maxRetainedCap = 64 << 10

// SyntaxError — фрагмент, который сканер счёл законченным, но который не
// является корректным JSON. Фрагмент выброшен, разбор продолжается.
type SyntaxError struct {
	Offset   int64 // смещение начала фрагмента от начала потока
	Fragment string
}

func (e *SyntaxError) Error() string {
	frag := e.Fragment
	if len(frag) > 64 {
		frag = frag[:64] + "..."
	}
	return fmt.Sprintf("jsonstream: malformed value at offset %d: %q", e.Offset, frag)
}

// Parser — инкрементальный разборщик. Не потокобезопасен: один Parser на одно
// соединение, Feed вызывается из одного места.
type Parser struct {
	buf []byte
	pos int // следующий байт buf для сканирования

	start    int // начало текущего значения в buf, -1 между значениями
	depth    int
	inString bool
	escaped  bool
	scalar   bool

	consumed int64 // сколько байт потока уже выброшено из buf
}

func New() *Parser {
	return &Parser{start: -1}
}

// Feed — добавляет кусок потока и возвращает все значения верхнего уровня,
// которые этот кусок завершил, в порядке поступления. Ошибка перечисляет
// (через errors.Join) выброшенные некорректные фрагменты и не отменяет
// возвращённые значения.
func (p *Parser) Feed(chunk []byte) ([]json.RawMessage, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	p.buf = append(p.buf, chunk...)

	var (
		out  []json.RawMessage
		errs []error
	)
	emit := func(end int) {
		frag := p.buf[p.start:end]
		if json.Valid(frag) {
			out = append(out, json.RawMessage(bytes.Clone(frag)))
		} else {
			errs = append(errs, &SyntaxError{
				Offset:   p.consumed + int64(p.start),
				Fragment: string(frag),
			})
		}
		p.start = -1
		p.depth = 0
		p.inString = false
		p.escaped = false
		p.scalar = false
	}

	for i := p.pos; i < len(p.buf); i++ {
		c := p.buf[i]
		switch {
		case p.start < 0:
			if isSpace(c) {
				continue
			}
			p.start = i
			switch c {
			case '{', '[':
				p.depth = 1
			case '"':
				p.inString = true
			case '}', ']', ',', ':':
				// закрывающая скобка или разделитель без значения
				emit(i + 1)
			default:
				p.scalar = true
			}

		case p.inString:
			switch {
			case p.escaped:
				p.escaped = false
			case c == '\\':
				p.escaped = true
			case c == '"':
				p.inString = false
				if p.depth == 0 {
					emit(i + 1)
				}
			}

		case p.scalar:
			if isSpace(c) || isDelim(c) {
				emit(i)
				i-- // этот байт может начинать следующее значение
			}

		default:
			switch c {
			case '"':
				p.inString = true
			case '{', '[':
				p.depth++
			case '}', ']':
				p.depth--
				if p.depth == 0 {
					emit(i + 1)
				}
			}
		}
	}
	p.pos = len(p.buf)
	p.compact()

	return out, errors.Join(errs...)
}

// Buffered — сколько байт удерживается под незавершённое значение.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset — сбрасывает состояние, незавершённое значение теряется.
func (p *Parser) Reset() {
	p.consumed += int64(len(p.buf))
	p.buf = nil
	p.pos = 0
	p.start = -1
	p.depth = 0
	p.inString = false
	p.escaped = false
	p.scalar = false
}

// оставляет в буфере только незавершённое значение
func (p *Parser) compact() {
	if p.start < 0 {
		p.consumed += int64(len(p.buf))
		if cap(p.buf) > maxRetainedCap {
			p.buf = nil
		} else {
			p.buf = p.buf[:0]
		}
		p.pos = 0
		return
	}
	if p.start == 0 {
		return
	}
	n := copy(p.buf, p.buf[p.start:])
	p.consumed += int64(p.start)
	p.buf = p.buf[:n]
	p.pos = n
	p.start = 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelim(c byte) bool {
	switch c {
	case '{', '[', '"', '}', ']', ',', ':':
		return true
	}
	return false
}
