package script

// Reference documents the table operations available to generated code.
// It is embedded in every prompt that asks a model to write code for Engine.
const Reference = `The code runs in a restricted Python dialect (Starlark): no imports, no pandas, no try/except, no f-strings.
The table is bound to ` + "`df`" + `; every method below returns a NEW table, so always reassign (df = df.fill_missing(...)).
Columns are referenced by name as strings. Missing cells are None.

Table methods:
- df.columns(), df.nrows(), df.numeric_columns(), df.column(name), df.rows(), df[name]
- df.fill_missing(columns=None, strategy="value"|"mean"|"median"|"mode"|"zero"|"ffill"|"bfill", value=None)
- df.drop_missing(columns=None)
- df.replace_negative(columns=None, strategy="median", value=None)
- df.clip(column, lower=None, upper=None)
- df.filter(column, op, value=None)   # op: "==", "!=", ">", ">=", "<", "<=", "isna", "notna"
- df.where(lambda row: ...)          # keep rows where the predicate is true; row is a dict
- df.derive(name, lambda row: ...)   # add or replace a column computed per row
- df.map(column, {old: new})
- df.cast(column, "int"|"float"|"str"|"bool")
- df.to_datetime(column, format="")  # normalizes to YYYY-MM-DD[ HH:MM:SS]; unparseable -> None
- df.drop_duplicates(columns=None), df.sort_by(column, descending=False), df.head(n=5)
- df.select([columns]), df.rename({old: new})
- df.value_counts(column), df.month_counts(column), df.unique(column)
- df.sum(column), df.mean(column), df.median(column), df.min(column), df.max(column), df.count(column)

Helpers: np.nan, np.isnan(x), np.abs(x), np.round(x, decimals), np.mean(list), np.median(list), np.sum(list), np.min(list), np.max(list);
pd.isna(x), pd.notna(x), pd.to_datetime(s), pd.year(s), pd.month(s), pd.day(s), pd.month_name(s), pd.day_name(s), pd.days_between(start, end).
Dates in cells are strings; ISO dates compare correctly as strings.`
