package sqlinline

const QInsertJob = `--sql 7c2f1a44-9d3e-4b8a-b1c6-2e5f8a901b23
insert into generation_jobs(
    id, owner_id, prompt, style, duration_seconds, aspect_ratio, quality,
    motion, camera, state, progress, artifacts, credits_reserved,
    credits_settled, error_message, created_at, updated_at, version)
values ($1::uuid, $2::text, $3::text, $4::text, $5::int, $6::text, $7::text,
    $8::text, $9::text, $10::text, $11::int, $12::jsonb, $13::int,
    $14::boolean, $15::text, $16::timestamptz, $17::timestamptz, $18::int);
`

const QGetJob = `--sql 5b8d0c17-2a6f-4e91-8d34-c7a1f25e6490
select id, owner_id, prompt, style, duration_seconds, aspect_ratio, quality,
       motion, camera, state, progress, artifacts, credits_reserved,
       credits_settled, error_message, created_at, updated_at, version
from generation_jobs
where id = $1::uuid;
`

const QUpdateJobCAS = `--sql 9e4a6b02-f1c8-4d57-a3b9-0d62e84c715f
update generation_jobs
set state = $2::text,
    progress = $3::int,
    artifacts = $4::jsonb,
    credits_settled = $5::boolean,
    error_message = $6::text,
    updated_at = $7::timestamptz,
    version = version + 1
where id = $1::uuid
  and version = $8::int;
`

const QListUnsettledJobs = `--sql 3f7e5d28-6c41-4a90-bb17-84f0a2d9c356
select id, owner_id, prompt, style, duration_seconds, aspect_ratio, quality,
       motion, camera, state, progress, artifacts, credits_reserved,
       credits_settled, error_message, created_at, updated_at, version
from generation_jobs
where credits_settled = false
order by created_at asc;
`
