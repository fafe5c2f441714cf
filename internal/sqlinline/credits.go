package sqlinline

const QGetSpendableBalance = `--sql a16c3f80-7b2d-4e45-9c08-5d1e9f4a62b7
select balance - reserved
from credit_accounts
where user_id = $1::text;
`

// Reservation is a conditional update: zero rows affected means the spendable
// balance was too low, and concurrent reservations serialize on the row lock.
const QReserveCredits = `--sql d90b7e15-3c64-4f82-a5d1-6e28c0b9f743
update credit_accounts
set reserved = reserved + $2::int,
    updated_at = now()
where user_id = $1::text
  and balance - reserved >= $2::int;
`

const QCommitCredits = `--sql 2a5d8c39-1e07-4b6f-bc42-97f3a0e6d518
update credit_accounts
set balance = balance - $2::int,
    reserved = reserved - $2::int,
    updated_at = now()
where user_id = $1::text
  and reserved >= $2::int;
`

const QReleaseCredits = `--sql 68f1b4a7-5d92-40c3-8e76-b30c2f7d9e04
update credit_accounts
set reserved = reserved - $2::int,
    updated_at = now()
where user_id = $1::text
  and reserved >= $2::int;
`
