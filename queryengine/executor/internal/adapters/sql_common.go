package adapters

import "database/sql"

// stdRows wraps standard library sql.Rows to implement DBRows interface
type stdRows struct {
	rows    *sql.Rows
	columns int
}

func (s *stdRows) Columns() ([]string, error) {
	columns, err := s.rows.Columns()
	if err != nil {
		return nil, err
	}

	s.columns = len(columns)

	return columns, nil
}

func (s *stdRows) Next() bool {
	return s.rows.Next()
}

// Values scans the current row into untyped destinations.
func (s *stdRows) Values() ([]any, error) {
	if s.columns == 0 {
		if _, err := s.Columns(); err != nil {
			return nil, err
		}
	}

	values := make([]any, s.columns)
	destinations := make([]any, s.columns)
	for i := range values {
		destinations[i] = &values[i]
	}

	if err := s.rows.Scan(destinations...); err != nil {
		return nil, err
	}

	return values, nil
}

func (s *stdRows) Err() error {
	return s.rows.Err()
}

func (s *stdRows) Close() error {
	return s.rows.Close()
}

// stdResult wraps standard library sql.Result to implement DBResult interface
type stdResult struct {
	result sql.Result
}

func (s *stdResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}

func (s *stdResult) LastInsertID() (int64, error) {
	return s.result.LastInsertId()
}
